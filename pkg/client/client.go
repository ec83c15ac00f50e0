// Package client - Go-клиент API задач и слой данных дашборда: доска с опросом,
// локальные изменения с откатом, сценарии разрешения конфликтов.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"agency-crm/pkg/dto"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type operationKey struct{}

// WithOperationID задает X-Operation-ID для следующего изменяющего запроса.
// Без него клиент генерирует новый ID на каждый вызов.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationKey{}, id)
}

func operationID(ctx context.Context) string {
	if id, ok := ctx.Value(operationKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Login получает токен и запоминает его для следующих запросов.
func (c *Client) Login(ctx context.Context, login, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/login", map[string]string{"login": login, "password": password}, &out); err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

// ListTasks читает одну страницу задач. Пустой status - все статусы.
func (c *Client) ListTasks(ctx context.Context, status dto.TaskStatus, page, pageSize int) (*dto.Page[dto.Task], error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	var out dto.Page[dto.Task]
	if err := c.do(ctx, http.MethodGet, "/api/tasks?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AllTasks обходит все страницы.
func (c *Client) AllTasks(ctx context.Context, status dto.TaskStatus) ([]dto.Task, error) {
	var all []dto.Task
	for page := 1; ; page++ {
		p, err := c.ListTasks(ctx, status, page, 100)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Data...)
		if page >= p.TotalPages {
			return all, nil
		}
	}
}

func (c *Client) GetTask(ctx context.Context, id uint) (*dto.Task, error) {
	return call[dto.Task](ctx, c, http.MethodGet, fmt.Sprintf("/api/tasks/%d", id), nil)
}

func (c *Client) CreateTask(ctx context.Context, req dto.CreateTaskRequest) (*dto.Task, error) {
	return call[dto.Task](ctx, c, http.MethodPost, "/api/tasks", req)
}

// UpdateTask - обычное редактирование. Денежный конфликт приходит как *Error с отчетом.
func (c *Client) UpdateTask(ctx context.Context, id uint, req dto.UpdateTaskRequest) (*dto.Task, error) {
	return call[dto.Task](ctx, c, http.MethodPut, fmt.Sprintf("/api/tasks/%d", id), req)
}

func (c *Client) PrepaidConflict(ctx context.Context, id uint, newPrepaid decimal.Decimal) (*dto.ConflictReport, error) {
	path := fmt.Sprintf("/api/tasks/%d/prepaid-conflict?new_prepaid_amount=%s", id, url.QueryEscape(newPrepaid.String()))
	return call[dto.ConflictReport](ctx, c, http.MethodGet, path, nil)
}

func (c *Client) AmountConflict(ctx context.Context, id uint, newAmount decimal.Decimal) (*dto.ConflictReport, error) {
	path := fmt.Sprintf("/api/tasks/%d/amount-conflict?new_task_amount=%s", id, url.QueryEscape(newAmount.String()))
	return call[dto.ConflictReport](ctx, c, http.MethodGet, path, nil)
}

func (c *Client) CancelAnalysis(ctx context.Context, id uint) (*dto.CancellationAnalysis, error) {
	return call[dto.CancellationAnalysis](ctx, c, http.MethodGet, fmt.Sprintf("/api/tasks/%d/cancel-analysis", id), nil)
}

func (c *Client) ResolvePrepaidChange(ctx context.Context, id uint, req dto.ResolvePrepaidChangeRequest) (*dto.ResolutionSummary, error) {
	return call[dto.ResolutionSummary](ctx, c, http.MethodPost, fmt.Sprintf("/api/tasks/%d/resolve-prepaid-change", id), req)
}

func (c *Client) ResolveAmountChange(ctx context.Context, id uint, req dto.ResolveAmountChangeRequest) (*dto.ResolutionSummary, error) {
	return call[dto.ResolutionSummary](ctx, c, http.MethodPost, fmt.Sprintf("/api/tasks/%d/resolve-amount-change", id), req)
}

func (c *Client) CancelTask(ctx context.Context, id uint, req dto.CancelTaskRequest) (*dto.ResolutionSummary, error) {
	return call[dto.ResolutionSummary](ctx, c, http.MethodPost, fmt.Sprintf("/api/tasks/%d/cancel", id), req)
}

// Transition выполняет переход статуса: defer, resume, submit, approve, reject.
func (c *Client) Transition(ctx context.Context, id uint, action string, req dto.TransitionRequest) (*dto.Task, error) {
	return call[dto.Task](ctx, c, http.MethodPost, fmt.Sprintf("/api/tasks/%d/%s", id, action), req)
}

func (c *Client) ValidateRestore(ctx context.Context, id uint) (*dto.RestoreValidation, error) {
	return call[dto.RestoreValidation](ctx, c, http.MethodGet, fmt.Sprintf("/api/tasks/%d/validate-restore", id), nil)
}

func (c *Client) Restore(ctx context.Context, id uint, req dto.RestoreRequest) (*dto.Task, error) {
	return call[dto.Task](ctx, c, http.MethodPost, fmt.Sprintf("/api/tasks/%d/restore", id), req)
}

func (c *Client) PayCommission(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/commissions/%d/pay", id), nil, nil)
}

func (c *Client) RecordPayment(ctx context.Context, receivableID uint, req dto.PaymentRequest) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/receivables/%d/payments", receivableID), req, nil)
}

func (c *Client) AllocateCredit(ctx context.Context, receivableID uint, req dto.AllocationRequest) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/receivables/%d/allocations", receivableID), req, nil)
}

func (c *Client) ClientCredits(ctx context.Context, clientID uint) (*dto.ClientCredits, error) {
	return call[dto.ClientCredits](ctx, c, http.MethodGet, fmt.Sprintf("/api/clients/%d/credits", clientID), nil)
}

func (c *Client) GrantCredit(ctx context.Context, clientID uint, req dto.CreditRequest) (*dto.Credit, error) {
	return call[dto.Credit](ctx, c, http.MethodPost, fmt.Sprintf("/api/clients/%d/credits", clientID), req)
}

func call[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	var out T
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if method != http.MethodGet {
		req.Header.Set(dto.OperationIDHeader, operationID(ctx))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindTransient, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindTransient, Status: resp.StatusCode, Message: err.Error(), Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(status int, data []byte) *Error {
	var body dto.ErrorBody
	_ = json.Unmarshal(data, &body)
	e := &Error{
		Status:       status,
		Kind:         body.Kind,
		Message:      body.Error,
		ConflictType: body.ConflictType,
		Data:         body.Data,
		Record:       body.Record,
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	switch {
	case status >= http.StatusInternalServerError:
		e.Kind = KindTransient
	case e.Kind != "":
	case status == http.StatusNotFound:
		e.Kind = dto.KindNotFound
	case status == http.StatusConflict:
		e.Kind = dto.KindConflictDetected
	case status == http.StatusPreconditionFailed:
		e.Kind = dto.KindConcurrentModification
	case status == http.StatusUnprocessableEntity:
		e.Kind = dto.KindValidationRejected
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		e.Kind = dto.KindUnauthorized
	default:
		e.Kind = dto.KindBadRequest
	}
	return e
}
