// Package demo provides the sample calculator service hosted by soapd.
package demo

import (
	"context"
	"log/slog"
	"math"

	"github.com/sirosfoundation/go-soap/pkg/contract"
)

// Namespace of the calculator contract
const Namespace = "http://go-soap.example/calculator/"

// DivideByZeroFault is the declared fault of Divide
type DivideByZeroFault struct {
	Dividend float64
	Message  string
}

// Statistics summarizes a list of values
type Statistics struct {
	Count int
	Sum   float64
	Mean  float64
	Min   float64
	Max   float64
}

// Calculator implements the ICalculator contract.
type Calculator struct {
	logger *slog.Logger
}

// NewCalculator creates a calculator logging notes to logger.
func NewCalculator(logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{logger: logger}
}

func (c *Calculator) Add(_ context.Context, a, b float64) (float64, error) {
	return a + b, nil
}

func (c *Calculator) Subtract(_ context.Context, a, b float64) (float64, error) {
	return a - b, nil
}

func (c *Calculator) Divide(_ context.Context, a, b float64) (float64, error) {
	if b == 0 {
		return 0, contract.NewFault("division by zero", &DivideByZeroFault{Dividend: a, Message: "the divisor must not be zero"})
	}
	return a / b, nil
}

// Summarize computes statistics of values. An empty list is a Sender fault.
func (c *Calculator) Summarize(_ context.Context, values []float64) (*Statistics, error) {
	if len(values) == 0 {
		return nil, contract.NewSenderFault("no values")
	}
	s := &Statistics{Count: len(values), Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range values {
		s.Sum += v
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
	}
	s.Mean = s.Sum / float64(s.Count)
	return s, nil
}

// Note records text in the log. It is a one-way operation.
func (c *Calculator) Note(ctx context.Context, text string) error {
	c.logger.InfoContext(ctx, "calculator note", slog.String("text", text))
	return nil
}

func (c *Calculator) Version(context.Context) (string, error) {
	return "1.0", nil
}

// NewService describes the calculator service.
func NewService() (*contract.ServiceDescription, error) {
	return contract.NewService("CalculatorService",
		contract.Contract("ICalculator",
			contract.Namespace(Namespace),
			contract.Operation("Add", contract.Binary((*Calculator).Add),
				contract.Param[float64]("a"), contract.Param[float64]("b"), contract.Returns[float64]()),
			contract.Operation("Subtract", contract.Binary((*Calculator).Subtract),
				contract.Param[float64]("a"), contract.Param[float64]("b"), contract.Returns[float64]()),
			contract.Operation("Divide", contract.Binary((*Calculator).Divide),
				contract.Param[float64]("a"), contract.Param[float64]("b"), contract.Returns[float64](),
				contract.Faults[DivideByZeroFault]()),
			contract.Operation("Summarize", contract.Unary((*Calculator).Summarize),
				contract.Param[[]float64]("values"), contract.Returns[*Statistics]()),
			contract.Operation("Note", contract.Procedure((*Calculator).Note),
				contract.Param[string]("text"), contract.OneWay()),
			contract.Operation("Version", contract.Nullary((*Calculator).Version),
				contract.Returns[string]()),
		),
	)
}
