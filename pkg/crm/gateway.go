// Package crm reads and writes people and projects in the target CRM. The CRM
// reports business errors through an errorcode field inside 200 responses, so
// every call normalizes that into the result envelope.
package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/result"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	resourcePeople   = "people"
	resourceProjects = "projects"
)

// Config holds CRM API configuration
type Config struct {
	BaseURL      string
	Email        string
	APIKey       string
	ShareToTeams bool
}

// Gateway calls the CRM API
type Gateway struct {
	http   *httpclient.Client
	cfg    Config
	logger ectologger.Logger
}

// NewGateway creates a new CRM gateway
func NewGateway(http *httpclient.Client, cfg Config, logger ectologger.Logger) *Gateway {
	return &Gateway{
		http:   http,
		cfg:    cfg,
		logger: logger,
	}
}

// ShareTo returns the share scope written on records: "team" when team
// sharing is on, otherwise empty.
func (g *Gateway) ShareTo() string {
	if g.cfg.ShareToTeams {
		return "team"
	}
	return ""
}

func (g *Gateway) authParams() url.Values {
	return url.Values{
		"user":    []string{g.cfg.Email},
		"api_key": []string{g.cfg.APIKey},
		"team":    []string{strconv.FormatBool(g.cfg.ShareToTeams)},
	}
}

type envelope struct {
	ErrorCode int    `json:"errorcode"`
	Message   string `json:"message"`
	Person    Record `json:"person,omitempty"`
	Project   Record `json:"project,omitempty"`
}

// GetPerson fetches a person by uniqueid (email or source-scoped customer id).
func (g *Gateway) GetPerson(ctx context.Context, uniqueID string) result.Result[Record] {
	return g.get(ctx, resourcePeople, uniqueID)
}

// GetProject fetches a project by uniqueid (source-scoped order id).
func (g *Gateway) GetProject(ctx context.Context, uniqueID string) result.Result[Record] {
	return g.get(ctx, resourceProjects, uniqueID)
}

// CreatePerson creates a person record.
func (g *Gateway) CreatePerson(ctx context.Context, record Record) result.Result[Record] {
	return g.post(ctx, resourcePeople, "create", record)
}

// UpdatePerson updates a person record.
func (g *Gateway) UpdatePerson(ctx context.Context, record Record) result.Result[Record] {
	return g.post(ctx, resourcePeople, "update", record)
}

// CreateProject creates a project record.
func (g *Gateway) CreateProject(ctx context.Context, record Record) result.Result[Record] {
	return g.post(ctx, resourceProjects, "create", record)
}

// UpdateProject updates a project record.
func (g *Gateway) UpdateProject(ctx context.Context, record Record) result.Result[Record] {
	return g.post(ctx, resourceProjects, "update", record)
}

func (g *Gateway) get(ctx context.Context, resource, uniqueID string) result.Result[Record] {
	ctx, span := tracing.StartSpan(ctx, "CRM.get."+resource)
	defer span.End()

	params := g.authParams()
	params.Set("uniqueid", uniqueID)

	url := fmt.Sprintf("%s/%s/get", g.cfg.BaseURL, resource)
	resp, err := g.http.Get(ctx, url, params, map[string]string{"Accept": "application/json"})
	if err != nil {
		return result.Fail[Record](result.KindTargetRejected, http.StatusBadGateway,
			fmt.Sprintf("Failed to reach the CRM: %v", err))
	}

	var env envelope
	if err := resp.DecodeJSON(&env); err != nil {
		return result.Fail[Record](result.KindTargetRejected, result.NormalizeStatus(resp.StatusCode),
			fmt.Sprintf("Unexpected CRM response: %v", err))
	}

	if env.ErrorCode != 0 {
		message := fmt.Sprintf("Error trying to get %s '%s'. %s", resource, uniqueID, env.Message)
		return result.Fail[Record](result.KindTargetRejected, result.NormalizeStatus(resp.StatusCode), message)
	}

	record := env.Person
	if resource == resourceProjects {
		record = env.Project
	}
	if record == nil {
		record = Record{}
	}

	return result.Ok(record, fmt.Sprintf("Successfully got %s '%s'!", resource, uniqueID))
}

func (g *Gateway) post(ctx context.Context, resource, verb string, record Record) result.Result[Record] {
	ctx, span := tracing.StartSpan(ctx, "CRM."+verb+"."+resource)
	defer span.End()

	name := record.Name()
	url := fmt.Sprintf("%s/%s/%s", g.cfg.BaseURL, resource, verb)

	resp, err := g.http.PostJSON(ctx, url, g.authParams(), nil, record)
	if err != nil {
		return result.Fail[Record](result.KindTargetRejected, http.StatusBadGateway,
			fmt.Sprintf("Failed to reach the CRM: %v", err))
	}

	var env envelope
	if err := resp.DecodeJSON(&env); err != nil {
		return result.Fail[Record](result.KindTargetRejected, result.NormalizeStatus(resp.StatusCode),
			fmt.Sprintf("Unexpected CRM response: %v", err))
	}

	if env.ErrorCode != 0 {
		message := fmt.Sprintf("Error trying to %s %s '%s'. %s", verb, resource, name, env.Message)
		return result.Fail[Record](result.KindTargetRejected, result.NormalizeStatus(resp.StatusCode), message)
	}

	message := fmt.Sprintf("Successfully %sd %s '%s'!", verb, resource, name)
	return result.Ok(record, message)
}
