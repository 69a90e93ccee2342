package soap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/twtctl/internal/metrics"
)

type rpcRequest struct {
	Method     string
	SOAPAction string
	Auth       map[string]any
	Data       map[string]any
}

// newRPCServer emulates the panel API: it decodes each request and answers
// with whatever respond returns (a full envelope) and status.
func newRPCServer(t *testing.T, respond func(req rpcRequest) (int, string)) (*httptest.Server, *[]rpcRequest) {
	t.Helper()
	var seen []rpcRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/xml; charset=utf-8", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		doc := etree.NewDocument()
		require.NoError(t, doc.ReadFromBytes(body))

		call := doc.Root().SelectElement("Body").ChildElements()[0]
		req := rpcRequest{
			Method:     call.Tag,
			SOAPAction: r.Header.Get("SOAPAction"),
		}
		if auth, ok := decodeValue(call.SelectElement("auth")).(map[string]any); ok {
			req.Auth = auth
		}
		if data, ok := decodeValue(call.SelectElement("data")).(map[string]any); ok {
			req.Data = data
		}
		seen = append(seen, req)

		status, out := respond(req)
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(out))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func responseEnvelope(method, ret string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/" xmlns:ns1="urn:xmethods" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:ns2="http://xml.apache.org/xml-soap" xmlns:SOAP-ENC="http://schemas.xmlsoap.org/soap/encoding/">
<SOAP-ENV:Body><ns1:%sResponse>%s</ns1:%sResponse></SOAP-ENV:Body>
</SOAP-ENV:Envelope>`, method, ret, method)
}

func mapReturn(items string) string {
	return `<return xsi:type="ns2:Map">` + items + `</return>`
}

func faultEnvelope(code, msg string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/">
<SOAP-ENV:Body><SOAP-ENV:Fault><faultcode>%s</faultcode><faultstring>%s</faultstring></SOAP-ENV:Fault></SOAP-ENV:Body>
</SOAP-ENV:Envelope>`, code, msg)
}

func testClient(url string) *Client {
	return NewClient(Config{
		Endpoint:   url,
		Namespace:  "urn:xmethods",
		SOAPAction: "urn:xmethods",
		Auth:       Credentials{Username: "admin", Password: "s3cret&<>"},
	}, zerolog.Nop(), metrics.NewRecorder())
}

// ---------- Call ----------

func TestClient_Call_SendsAuthAndData(t *testing.T) {
	srv, seen := newRPCServer(t, func(req rpcRequest) (int, string) {
		return http.StatusOK, responseEnvelope(req.Method, `<return xsi:type="xsd:int">1</return>`)
	})

	client := testClient(srv.URL)
	_, err := client.Call(context.Background(), "twtPing", Params{{Key: "email", Value: "a@example.com"}})
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "twtPing", req.Method)
	assert.Equal(t, `"urn:xmethods"`, req.SOAPAction)
	assert.Equal(t, map[string]any{"username": "admin", "passwd": "s3cret&<>"}, req.Auth)
	assert.Equal(t, map[string]any{"email": "a@example.com"}, req.Data)
}

func TestClient_Call_Faults(t *testing.T) {
	cases := []struct {
		code string
		kind error
	}{
		{CodeAuthentication, ErrAuthentication},
		{CodeValidation, ErrValidation},
		{CodePermission, ErrPermission},
		{CodeOperation, ErrOperation},
	}
	kinds := []error{ErrAuthentication, ErrValidation, ErrPermission, ErrOperation}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			msg := "Fehler " + tc.code + ": Registrar meldet <Fehler>"
			srv, _ := newRPCServer(t, func(req rpcRequest) (int, string) {
				return http.StatusInternalServerError, faultEnvelope(tc.code, "Fehler "+tc.code+": Registrar meldet &lt;Fehler&gt;")
			})

			_, err := testClient(srv.URL).Call(context.Background(), MethodGetDomain, nil)
			require.Error(t, err)

			var fault *Fault
			require.True(t, errors.As(err, &fault))
			assert.Equal(t, tc.code, fault.Code)
			assert.Equal(t, msg, fault.Message)
			assert.Equal(t, tc.kind, fault.Kind())
			for _, k := range kinds {
				assert.Equal(t, k == tc.kind, errors.Is(err, k), "errors.Is(%v)", k)
			}
		})
	}
}

func TestClient_Call_FaultCodePrefixStripped(t *testing.T) {
	srv, _ := newRPCServer(t, func(req rpcRequest) (int, string) {
		return http.StatusInternalServerError, faultEnvelope("SOAP-ENV:9900", "Authentifizierung fehlgeschlagen")
	})

	_, err := testClient(srv.URL).Call(context.Background(), MethodGetDomain, nil)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestClient_Call_UnknownFaultCode(t *testing.T) {
	srv, _ := newRPCServer(t, func(req rpcRequest) (int, string) {
		return http.StatusInternalServerError, faultEnvelope("Server", "boom")
	})

	_, err := testClient(srv.URL).Call(context.Background(), MethodGetDomain, nil)
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "Server", fault.Code)
	assert.Nil(t, fault.Kind())
}

func TestClient_Call_HTTPErrorWithoutFault(t *testing.T) {
	srv, _ := newRPCServer(t, func(req rpcRequest) (int, string) {
		return http.StatusBadGateway, "upstream down"
	})

	_, err := testClient(srv.URL).Call(context.Background(), MethodGetDomain, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream down")
}

// ---------- Mailbox ----------

func TestClient_GetMailbox(t *testing.T) {
	srv, seen := newRPCServer(t, func(req rpcRequest) (int, string) {
		return http.StatusOK, responseEnvelope(req.Method, mapReturn(`
<item><key xsi:type="xsd:string">email</key><value xsi:type="xsd:string">info@example.com</value></item>
<item><key xsi:type="xsd:string">type</key><value xsi:type="xsd:string">MBFWD</value></item>
<item><key xsi:type="xsd:string">targets</key><value xsi:type="xsd:string">a@example.org  b@example.org</value></item>
<item><key xsi:type="xsd:string">active</key><value xsi:type="xsd:int">1</value></item>`))
	})

	m, err := testClient(srv.URL).GetMailbox(context.Background(), "info@example.com")
	require.NoError(t, err)
	assert.Equal(t, MethodGetEmailAddress, (*seen)[0].Method)
	assert.Equal(t, "info@example.com", m.Email)
	assert.Equal(t, TypeMailboxForward, m.Type)
	assert.Equal(t, []string{"a@example.org", "b@example.org"}, m.Targets)
	assert.True(t, m.Active)
}

func TestClient_InstallMailbox_PassesInactiveThrough(t *testing.T) {
	srv, seen := newRPCServer(t, func(req rpcRequest) (int, string) {
		return http.StatusOK, responseEnvelope(req.Method, `<return xsi:type="xsd:int">1</return>`)
	})

	client := testClient(srv.URL)
	_, err := client.InstallMailbox(context.Background(), Mailbox{
		Email:    "new@example.com",
		Type:     TypeMailbox,
		Password: "pw",
		Targets:  []string{"x@example.org", "y@example.org"},
		Active:   false,
	})
	require.NoError(t, err)

	// The service activates new addresses anyway; exactly one call is made
	// and no follow-up update tries to deactivate it.
	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, MethodInstallEmailAddress, req.Method)
	assert.Equal(t, int64(0), req.Data["active"])
	assert.Equal(t, "MB", req.Data["type"])
	assert.Equal(t, "pw", req.Data["passwd"])
	assert.Equal(t, "x@example.org y@example.org", req.Data["targets"])
}

func TestClient_UpdateMailbox(t *testing.T) {
	srv, seen := newRPCServer(t, func(req rpcRequest) (int, string) {
		return http.StatusOK, responseEnvelope(req.Method, `<return xsi:type="xsd:boolean">true</return>`)
	})

	res, err := testClient(srv.URL).UpdateMailbox(context.Background(), Mailbox{Email: "u@example.com", Type: TypeForward, Active: true})
	require.NoError(t, err)
	assert.Equal(t, true, res)
	assert.Equal(t, MethodUpdateEmailAddress, (*seen)[0].Method)
	assert.Equal(t, int64(1), (*seen)[0].Data["active"])
}

func TestClient_DeleteMailbox(t *testing.T) {
	srv, seen := newRPCServer(t, func(req rpcRequest) (int, string) {
		return http.StatusOK, responseEnvelope(req.Method, `<return xsi:type="xsd:int">1</return>`)
	})

	code, err := testClient(srv.URL).DeleteMailbox(context.Background(), "old@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), code)
	assert.Equal(t, map[string]any{"email": "old@example.com"}, (*seen)[0].Data)
}

// ---------- Domain ----------

func TestClient_GetDomain(t *testing.T) {
	srv, _ := newRPCServer(t, func(req rpcRequest) (int, string) {
		return http.StatusOK, responseEnvelope(req.Method, `<return>
<item><key>name</key><value>example.com</value></item>
<item><key>registrarStatus</key><value xsi:type="xsd:int">1000</value></item>
<item><key>registratAuthCode</key><value>abc-123</value></item>
<item><key>refIdContactOwner</key><value xsi:type="xsd:int">17</value></item>
<item><key>refIdContactAdmin</key><value xsi:type="xsd:int">18</value></item>
<item><key>webIp</key><value>192.0.2.10</value></item>
<item><key>mailIp</key><value xsi:nil="true"/></item></return>`)
	})

	d, err := testClient(srv.URL).GetDomain(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", d.Name)
	assert.Equal(t, RegistrarStatusOK, d.RegistrarStatus)
	assert.Equal(t, "abc-123", d.RegistrarAuthCode)
	assert.Equal(t, map[string]string{"Owner": "17", "Admin": "18"}, d.Contacts)
	assert.Equal(t, "192.0.2.10", d.WebIP)
	assert.Empty(t, d.MailIP)
}

func TestClient_UpdateDomain(t *testing.T) {
	srv, seen := newRPCServer(t, func(req rpcRequest) (int, string) {
		return http.StatusOK, responseEnvelope(req.Method, `<return xsi:type="xsd:int">1</return>`)
	})

	_, err := testClient(srv.URL).UpdateDomain(context.Background(), "example.com", Params{{Key: "webIp", Value: "192.0.2.20"}})
	require.NoError(t, err)
	assert.Equal(t, MethodUpdateDomain, (*seen)[0].Method)
	assert.Equal(t, map[string]any{"name": "example.com", "webIp": "192.0.2.20"}, (*seen)[0].Data)
}

func TestClient_RegisterDomain(t *testing.T) {
	srv, seen := newRPCServer(t, func(req rpcRequest) (int, string) {
		return http.StatusOK, responseEnvelope(req.Method, `<return xsi:type="xsd:int">4711</return>`)
	})

	res, err := testClient(srv.URL).RegisterDomain(context.Background(), Registration{
		Name:           "example.net",
		OwnerContactID: "17",
		AdminContactID: "18",
		WebIP:          "192.0.2.10",
		MailIP:         "192.0.2.11",
		RegType:        RegTypeTransfer,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4711), res)
	assert.Equal(t, map[string]any{
		"name":              "example.net",
		"refIdContactOwner": "17",
		"refIdContactAdmin": "18",
		"webIp":             "192.0.2.10",
		"mailIp":            "192.0.2.11",
		"regType":           "transfer",
	}, (*seen)[0].Data)
}
