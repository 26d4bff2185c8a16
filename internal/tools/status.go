package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const defaultToolTimeout = 5 * time.Second

// ServiceStatus is the reported state of one monitored service.
type ServiceStatus struct {
	Service string `mapstructure:"service" json:"service"`
	State   string `mapstructure:"state" json:"state"`
	Detail  string `mapstructure:"detail" json:"detail,omitempty"`
}

// StatusProvider reports the health of named services.
type StatusProvider interface {
	// Services lists the service names Status accepts, in display order.
	Services() []string
	// Status returns one entry for service, or every service when service is "all".
	Status(ctx context.Context, service string) ([]ServiceStatus, error)
}

// StaticStatus is an in-memory StatusProvider returning fixed states.
type StaticStatus struct {
	entries []ServiceStatus
}

// NewStaticStatus builds a StaticStatus. With no entries it reports web and
// api as operational.
func NewStaticStatus(entries ...ServiceStatus) *StaticStatus {
	if len(entries) == 0 {
		entries = []ServiceStatus{
			{Service: "web", State: "operational"},
			{Service: "api", State: "operational"},
		}
	}
	return &StaticStatus{entries: entries}
}

func (s *StaticStatus) Services() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Service
	}
	return names
}

func (s *StaticStatus) Status(_ context.Context, service string) ([]ServiceStatus, error) {
	if service == "all" {
		out := make([]ServiceStatus, len(s.entries))
		copy(out, s.entries)
		return out, nil
	}
	for _, e := range s.entries {
		if e.Service == service {
			return []ServiceStatus{e}, nil
		}
	}
	return nil, fmt.Errorf("no status for service %q", service)
}

// NewStatusTool returns the check_status tool backed by provider. The
// provider call is bounded by timeout (5s when zero).
func NewStatusTool(provider StatusProvider, timeout time.Duration) Definition {
	if timeout <= 0 {
		timeout = defaultToolTimeout
	}
	return Definition{
		Name:        "check_status",
		Description: "Report the current operational status of the web frontend and API services",
		Schema: Schema{Fields: []Field{{
			Name:        "service",
			Type:        TypeString,
			Description: "Service to check, or \"all\"",
			Default:     "all",
			Enum:        append([]string{"all"}, provider.Services()...),
		}}},
		Examples: statusExamples(provider.Services()),
		Handler: func(ctx context.Context, args Args) (Result, error) {
			var p struct {
				Service string `mapstructure:"service"`
			}
			if err := args.Decode(&p); err != nil {
				return Result{}, err
			}

			statuses, err := bounded(ctx, timeout, func(ctx context.Context) ([]ServiceStatus, error) {
				return provider.Status(ctx, p.Service)
			})
			if err != nil {
				return Result{}, fmt.Errorf("status check: %w", err)
			}
			if len(statuses) == 0 {
				return Result{}, fmt.Errorf("status check: no services reported")
			}
			return TextResult(formatStatuses(statuses)), nil
		},
	}
}

func statusExamples(services []string) []string {
	examples := []string{`{"service":"all"}`}
	if len(services) > 0 {
		examples = append(examples, fmt.Sprintf(`{"service":%q}`, services[len(services)-1]))
	}
	return examples
}

func formatStatuses(statuses []ServiceStatus) string {
	var sb strings.Builder
	for i, st := range statuses {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s: %s", st.Service, st.State)
		if st.Detail != "" {
			fmt.Fprintf(&sb, " (%s)", st.Detail)
		}
	}
	return sb.String()
}
