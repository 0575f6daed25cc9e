// Package operations reads and maintains the operation history.
package operations

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Angel-Nizama/web-operaciones-v2/pkg/apiclient"
)

// DefaultPerPage is the history page size.
const DefaultPerPage = 100

const dateLayout = "2006-01-02"

var validate = validator.New()

// Requester is the subset of *apiclient.Client the service uses.
type Requester interface {
	Create(ctx context.Context, endpoint string, body any) (*apiclient.Envelope, error)
	Remove(ctx context.Context, endpoint string, params apiclient.Params) (*apiclient.Envelope, error)
	Upload(ctx context.Context, endpoint string, payload *apiclient.Multipart) (*apiclient.Envelope, error)
}

// Operation is one recorded transfer between two affiliates.
type Operation struct {
	ID     int     `json:"id"`
	Date   string  `json:"fecha"`
	Time   string  `json:"hora"`
	NameA  string  `json:"nombre1"`
	NameB  string  `json:"nombre2"`
	Amount float64 `json:"monto"`
}

// HistoryQuery filters the history. Empty fields do not constrain; dates
// use the YYYY-MM-DD form.
type HistoryQuery struct {
	NameA    string `json:"nombre1,omitempty"`
	NameB    string `json:"nombre2,omitempty"`
	DateFrom string `json:"fecha_desde,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DateTo   string `json:"fecha_hasta,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Page     int    `json:"page" validate:"gte=1"`
	PerPage  int    `json:"per_page" validate:"gte=1,lte=1000"`
}

func (q HistoryQuery) withDefaults() HistoryQuery {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = DefaultPerPage
	}
	return q
}

func (q HistoryQuery) validate() error {
	if err := validate.Struct(q); err != nil {
		return err
	}
	if q.DateFrom != "" && q.DateTo != "" {
		from, _ := time.Parse(dateLayout, q.DateFrom)
		to, _ := time.Parse(dateLayout, q.DateTo)
		if to.Before(from) {
			return fmt.Errorf("fecha_hasta %s is before fecha_desde %s", q.DateTo, q.DateFrom)
		}
	}
	return nil
}

// HistoryPage is one page of the history plus the totals of the whole
// filtered set.
type HistoryPage struct {
	Operations  []Operation `json:"operations"`
	Total       int         `json:"total"`
	TotalAmount float64     `json:"total_amount"`
	Page        int         `json:"page"`
	Pages       int         `json:"pages"`
}

// UploadResult summarizes a processed upload.
type UploadResult struct {
	Message   string
	Processed int
}

// Service reads and maintains the operation history.
type Service struct {
	client Requester
}

// NewService returns a Service using client.
func NewService(client Requester) *Service {
	return &Service{client: client}
}

// History returns one page of operations matching q.
func (s *Service) History(ctx context.Context, q HistoryQuery) (*HistoryPage, error) {
	q = q.withDefaults()
	if err := q.validate(); err != nil {
		return nil, invalid("invalid history query", err)
	}

	env, err := s.client.Create(ctx, "/historico", q)
	if err != nil {
		return nil, err
	}
	if err := env.Err("could not load history"); err != nil {
		return nil, err
	}

	page := &HistoryPage{
		Total:       int(env.Field("total").Int()),
		TotalAmount: env.Field("montoTotal").Float(),
		Page:        q.Page,
		Pages:       env.Pages(),
	}
	if err := env.DecodeData(&page.Operations); err != nil {
		return nil, err
	}
	return page, nil
}

// Upload sends one or more operation spreadsheets.
func (s *Service) Upload(ctx context.Context, paths ...string) (*UploadResult, error) {
	if len(paths) == 0 {
		return nil, invalid("no files to upload", fmt.Errorf("upload: empty file list"))
	}
	payload := &apiclient.Multipart{}
	for _, p := range paths {
		part, err := apiclient.LoadSpreadsheet("files", p)
		if err != nil {
			return nil, invalid(err.Error(), err)
		}
		payload.Files = append(payload.Files, part)
	}

	env, err := s.client.Upload(ctx, "/upload", payload)
	if err != nil {
		return nil, err
	}
	if err := env.Err("could not process files"); err != nil {
		return nil, err
	}
	return &UploadResult{Message: env.Message, Processed: int(env.Field("registros_procesados").Int())}, nil
}

// Delete removes one operation.
func (s *Service) Delete(ctx context.Context, id int) (string, error) {
	return s.remove(ctx, "/delete/operaciones/"+strconv.Itoa(id), "could not delete operation")
}

// DeleteAll removes every operation.
func (s *Service) DeleteAll(ctx context.Context) (string, error) {
	return s.remove(ctx, "/delete_all", "could not delete operations")
}

func (s *Service) remove(ctx context.Context, endpoint, fallback string) (string, error) {
	env, err := s.client.Remove(ctx, endpoint, nil)
	if err != nil {
		return "", err
	}
	if err := env.Err(fallback); err != nil {
		return "", err
	}
	return env.Message, nil
}

func invalid(msg string, err error) error {
	return &apiclient.Error{Kind: apiclient.KindClientLogic, Message: msg, Err: err}
}
