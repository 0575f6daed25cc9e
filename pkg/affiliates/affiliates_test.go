package affiliates

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Angel-Nizama/web-operaciones-v2/pkg/apiclient"
)

func newTestService(baseURL string) *Service {
	return NewService(apiclient.New(baseURL,
		apiclient.WithSleeper(func(context.Context, time.Duration) error { return nil }),
		apiclient.WithThrottleWindow(0),
	))
}

func validAffiliate() Affiliate {
	return Affiliate{
		Number:       "987654321",
		FirstName:    "Ana",
		PaternalName: "Pérez",
		MaternalName: "Soto",
		DNI:          "44556677",
		Status:       StatusActive,
	}
}

func TestList(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/afiliados", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true,"totalAfiliados":25,"afiliadosActivos":18,
			"pagination":{"total":25,"page":2,"per_page":10,"pages":3},
			"data":[{"id":3,"numero":"987654321","nombre":"Ana","apellido_paterno":"Pérez","apellido_materno":"Soto","dni":"44556677","email":null,"estado":"Activo"}]}`))
	}))
	defer srv.Close()

	p, err := newTestService(srv.URL).List(context.Background(), Query{Status: StatusActive, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 25, p.Total)
	assert.Equal(t, 18, p.Active)
	assert.Equal(t, 3, p.Pages)
	require.Len(t, p.Affiliates, 1)
	assert.Equal(t, "Ana Pérez Soto", p.Affiliates[0].FullName())

	assert.Equal(t, "Activo", got["estado"])
	assert.Equal(t, float64(DefaultPerPage), got["per_page"])
	assert.Equal(t, float64(2), got["page"])
}

func TestListRejectsUnknownStatus(t *testing.T) {
	_, err := newTestService("http://unused").List(context.Background(), Query{Status: "Suspendido"})
	require.Error(t, err)
	assert.Equal(t, apiclient.KindClientLogic, apiclient.KindOf(err))
}

func TestSearch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "dni", body["tipo"])
		assert.Equal(t, "4455", body["texto"])
		w.Write([]byte(`{"success":true,"data":[{"numero":"987654321","nombre_completo":"Ana Pérez Soto","valor_busqueda":"44556677"}]}`))
	}))
	defer srv.Close()

	svc := newTestService(srv.URL)
	matches, err := svc.Search(context.Background(), "a", SearchByName)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Zero(t, hits.Load(), "short text must not reach the service")

	matches, err = svc.Search(context.Background(), " 4455 ", SearchByDNI)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "44556677", matches[0].Matched)
}

func TestParseSearchKind(t *testing.T) {
	k, err := ParseSearchKind("")
	require.NoError(t, err)
	assert.Equal(t, SearchByName, k)

	k, err = ParseSearchKind("DNI")
	require.NoError(t, err)
	assert.Equal(t, SearchByDNI, k)

	_, err = ParseSearchKind("email")
	assert.Error(t, err)
}

func TestCreateAndUpdate(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		var a Affiliate
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&a))
		assert.Equal(t, "987654321", a.Number)
		w.Write([]byte(`{"success":true,"message":"ok"}`))
	}))
	defer srv.Close()

	svc := newTestService(srv.URL)
	ctx := context.Background()

	bad := validAffiliate()
	bad.DNI = ""
	_, err := svc.Create(ctx, bad)
	assert.Equal(t, apiclient.KindClientLogic, apiclient.KindOf(err))

	bad = validAffiliate()
	bad.Email = "not-an-email"
	_, err = svc.Create(ctx, bad)
	assert.Equal(t, apiclient.KindClientLogic, apiclient.KindOf(err))

	_, err = svc.Create(ctx, validAffiliate())
	require.NoError(t, err)
	_, err = svc.Update(ctx, 3, validAffiliate())
	require.NoError(t, err)
	_, err = svc.Update(ctx, 0, validAffiliate())
	assert.Error(t, err)

	assert.Equal(t, []string{"POST /afiliados/crear", "PUT /afiliados/3"}, seen)
}

func TestUploadAndMaintenance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "afiliados.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		if r.URL.Path == "/upload_afiliados" {
			_, _, err := r.FormFile("file")
			assert.NoError(t, err)
			w.Write([]byte(`{"success":true,"message":"Se procesaron 3 registros de afiliados.","total_records":3}`))
			return
		}
		w.Write([]byte(`{"success":true,"message":"ok"}`))
	}))
	defer srv.Close()

	svc := newTestService(srv.URL)
	ctx := context.Background()

	msg, n, err := svc.Upload(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Contains(t, msg, "3 registros")

	_, err = svc.DeleteAll(ctx)
	require.NoError(t, err)
	_, err = svc.RefreshStatuses(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"POST /upload_afiliados",
		"DELETE /delete_all_afiliados",
		"POST /afiliados/actualizar-estados",
	}, seen)
}
