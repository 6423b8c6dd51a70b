package demo

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirosfoundation/go-soap/pkg/contract"
	"github.com/sirosfoundation/go-soap/pkg/dispatch"
	"github.com/sirosfoundation/go-soap/pkg/encoder"
	"github.com/sirosfoundation/go-soap/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculator_Methods(t *testing.T) {
	c := NewCalculator(slog.New(slog.DiscardHandler))
	ctx := context.Background()

	v, err := c.Divide(ctx, 9, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	_, err = c.Divide(ctx, 1, 0)
	var fe *contract.FaultError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, &DivideByZeroFault{Dividend: 1, Message: "the divisor must not be zero"}, fe.Detail)

	s, err := c.Summarize(ctx, []float64{2, 4, 9})
	require.NoError(t, err)
	assert.Equal(t, &Statistics{Count: 3, Sum: 15, Mean: 5, Min: 2, Max: 9}, s)

	_, err = c.Summarize(ctx, nil)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, message.FaultCodeSender, fe.FaultCode())
}

func TestNewService(t *testing.T) {
	svc, err := NewService()
	require.NoError(t, err)
	require.Len(t, svc.Operations(), 6)

	note := svc.Contract("ICalculator").Operation("Note")
	require.NotNil(t, note)
	assert.True(t, note.IsOneWay)
	assert.Equal(t, Namespace+"ICalculator/Add", svc.Contract("ICalculator").Operation("Add").SoapAction)
}

func TestCalculator_OverSoap(t *testing.T) {
	svc, err := NewService()
	require.NoError(t, err)
	enc, err := encoder.New(message.Soap12)
	require.NoError(t, err)
	router := dispatch.NewRouter()
	_, err = router.Handle("/Calculator.svc", svc, NewCalculator(slog.New(slog.DiscardHandler)), dispatch.WithEncoders(enc))
	require.NoError(t, err)

	call := func(body string) (*httptest.ResponseRecorder, *message.Message) {
		env := `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope"><s:Body>` + body + `</s:Body></s:Envelope>`
		req := httptest.NewRequest(http.MethodPost, "/Calculator.svc", strings.NewReader(env))
		req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Body.Len() == 0 {
			return rec, nil
		}
		m, err := enc.ReadMessage(context.Background(), rec.Body, rec.Header().Get("Content-Type"))
		require.NoError(t, err)
		return rec, m
	}

	rec, m := call(`<Add xmlns="` + Namespace + `"><a>1.5</a><b>2</b></Add>`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3.5", m.BodyElement().SelectElement("AddResult").Text())

	rec, m = call(`<Divide xmlns="` + Namespace + `"><a>1</a><b>0</b></Divide>`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	f, err := message.ParseFault(m)
	require.NoError(t, err)
	assert.Equal(t, "division by zero", f.Reason)
	require.Len(t, f.Detail, 1)
	assert.Equal(t, "DivideByZeroFault", f.Detail[0].Tag)

	rec, _ = call(`<Note xmlns="` + Namespace + `"><text>hello</text></Note>`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
