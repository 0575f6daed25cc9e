// Package affiliates manages the affiliate registry.
package affiliates

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Angel-Nizama/web-operaciones-v2/pkg/apiclient"
)

// Status values.
const (
	StatusActive   = "Activo"
	StatusInactive = "Inactivo"
	StatusAll      = "Todos"
)

// DefaultPerPage is the listing page size.
const DefaultPerPage = 10

// MinSearchLength is the shortest text Search sends to the service.
const MinSearchLength = 2

var validate = validator.New()

// Requester is the subset of *apiclient.Client the service uses.
type Requester interface {
	Create(ctx context.Context, endpoint string, body any) (*apiclient.Envelope, error)
	Update(ctx context.Context, endpoint string, body any) (*apiclient.Envelope, error)
	Remove(ctx context.Context, endpoint string, params apiclient.Params) (*apiclient.Envelope, error)
	Upload(ctx context.Context, endpoint string, payload *apiclient.Multipart) (*apiclient.Envelope, error)
}

// Affiliate is a registered affiliate.
type Affiliate struct {
	ID           int    `json:"id,omitempty"`
	Number       string `json:"numero" validate:"required"`
	FirstName    string `json:"nombre" validate:"required"`
	PaternalName string `json:"apellido_paterno" validate:"required"`
	MaternalName string `json:"apellido_materno" validate:"required"`
	DNI          string `json:"dni" validate:"required,numeric"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Status       string `json:"estado,omitempty" validate:"omitempty,oneof=Activo Inactivo"`
}

// FullName joins the name parts.
func (a Affiliate) FullName() string {
	return strings.Join(strings.Fields(a.FirstName+" "+a.PaternalName+" "+a.MaternalName), " ")
}

// SearchKind selects the field Search matches against.
type SearchKind string

const (
	SearchByName   SearchKind = "nombre"
	SearchByNumber SearchKind = "numero"
	SearchByDNI    SearchKind = "dni"
)

// ParseSearchKind validates s, defaulting to SearchByName when empty.
func ParseSearchKind(s string) (SearchKind, error) {
	switch k := SearchKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SearchByName, nil
	case SearchByName, SearchByNumber, SearchByDNI:
		return k, nil
	}
	return "", fmt.Errorf("unknown search kind %q (nombre, numero, dni)", s)
}

// Match is a search hit.
type Match struct {
	Number   string `json:"numero"`
	FullName string `json:"nombre_completo"`
	Matched  string `json:"valor_busqueda"`
}

// Query filters the listing. An empty or "Todos" status matches every
// affiliate.
type Query struct {
	Number  string `json:"numero,omitempty"`
	Name    string `json:"nombre,omitempty"`
	DNI     string `json:"dni,omitempty"`
	Status  string `json:"estado,omitempty" validate:"omitempty,oneof=Activo Inactivo Todos"`
	Page    int    `json:"page" validate:"gte=1"`
	PerPage int    `json:"per_page" validate:"gte=1,lte=1000"`
}

// Page is one listing page plus registry totals.
type Page struct {
	Affiliates []Affiliate `json:"affiliates"`
	Total      int         `json:"total"`
	Active     int         `json:"active"`
	Page       int         `json:"page"`
	Pages      int         `json:"pages"`
}

// Service manages the affiliate registry.
type Service struct {
	client Requester
}

// NewService returns a Service using client.
func NewService(client Requester) *Service {
	return &Service{client: client}
}

// List returns one page of affiliates matching q.
func (s *Service) List(ctx context.Context, q Query) (*Page, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = DefaultPerPage
	}
	if err := validate.Struct(q); err != nil {
		return nil, invalid("invalid affiliate query", err)
	}

	env, err := s.client.Create(ctx, "/afiliados", q)
	if err != nil {
		return nil, err
	}
	if err := env.Err("could not load affiliates"); err != nil {
		return nil, err
	}
	p := &Page{
		Total:  int(env.Field("totalAfiliados").Int()),
		Active: int(env.Field("afiliadosActivos").Int()),
		Page:   q.Page,
		Pages:  env.Pages(),
	}
	if err := env.DecodeData(&p.Affiliates); err != nil {
		return nil, err
	}
	return p, nil
}

// Search looks affiliates up by name, number or DNI. Text shorter than
// MinSearchLength returns no matches without calling the service.
func (s *Service) Search(ctx context.Context, text string, kind SearchKind) ([]Match, error) {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < MinSearchLength {
		return []Match{}, nil
	}
	if kind == "" {
		kind = SearchByName
	}
	env, err := s.client.Create(ctx, "/buscar_afiliado", map[string]any{"texto": text, "tipo": kind})
	if err != nil {
		return nil, err
	}
	if err := env.Err("could not search affiliates"); err != nil {
		return nil, err
	}
	matches := []Match{}
	if err := env.DecodeData(&matches); err != nil {
		return nil, err
	}
	return matches, nil
}

// Upload sends an affiliate spreadsheet and returns the service message
// and the number of records processed.
func (s *Service) Upload(ctx context.Context, path string) (string, int, error) {
	part, err := apiclient.LoadSpreadsheet("file", path)
	if err != nil {
		return "", 0, invalid(err.Error(), err)
	}
	env, err := s.client.Upload(ctx, "/upload_afiliados", &apiclient.Multipart{Files: []apiclient.FilePart{part}})
	if err != nil {
		return "", 0, err
	}
	if err := env.Err("could not process affiliates file"); err != nil {
		return "", 0, err
	}
	return env.Message, int(env.Field("total_records").Int()), nil
}

// Create registers a new affiliate.
func (s *Service) Create(ctx context.Context, a Affiliate) (string, error) {
	if err := validate.Struct(a); err != nil {
		return "", invalid("invalid affiliate", err)
	}
	a.ID = 0
	env, err := s.client.Create(ctx, "/afiliados/crear", a)
	if err != nil {
		return "", err
	}
	if err := env.Err("could not create affiliate"); err != nil {
		return "", err
	}
	return env.Message, nil
}

// Update replaces the affiliate with the given id.
func (s *Service) Update(ctx context.Context, id int, a Affiliate) (string, error) {
	if id <= 0 {
		return "", invalid("invalid affiliate id", fmt.Errorf("update: id %d", id))
	}
	if err := validate.Struct(a); err != nil {
		return "", invalid("invalid affiliate", err)
	}
	a.ID = id
	env, err := s.client.Update(ctx, "/afiliados/"+strconv.Itoa(id), a)
	if err != nil {
		return "", err
	}
	if err := env.Err("could not update affiliate"); err != nil {
		return "", err
	}
	return env.Message, nil
}

// DeleteAll removes every affiliate.
func (s *Service) DeleteAll(ctx context.Context) (string, error) {
	env, err := s.client.Remove(ctx, "/delete_all_afiliados", nil)
	if err != nil {
		return "", err
	}
	if err := env.Err("could not delete affiliates"); err != nil {
		return "", err
	}
	return env.Message, nil
}

// RefreshStatuses asks the service to recompute active/inactive statuses
// from recent operations.
func (s *Service) RefreshStatuses(ctx context.Context) (string, error) {
	env, err := s.client.Create(ctx, "/afiliados/actualizar-estados", nil)
	if err != nil {
		return "", err
	}
	if err := env.Err("could not refresh statuses"); err != nil {
		return "", err
	}
	return env.Message, nil
}

func invalid(msg string, err error) error {
	return &apiclient.Error{Kind: apiclient.KindClientLogic, Message: msg, Err: err}
}
