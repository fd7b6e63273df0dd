package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ballot-auth/internal/database"
	"ballot-auth/internal/domain"
	"ballot-auth/internal/repository"
	"ballot-auth/internal/repository/sqldb"
)

const (
	StatusConnected = "Connected successfully"
	StatusFailed    = "failed"

	DefaultAdminEmail = "admin@votingsystem.com"
)

// DiagnosticsConfig describes what the probe may disclose about the environment.
// Only presence is reported for secrets, never values.
type DiagnosticsConfig struct {
	DescriptorSet bool
	SecretSet     bool
	Environment   string
	AdminEmail    string
}

type EnvironmentCheck struct {
	DatastoreDescriptor string
	SigningSecret       string
	ExecutionEnv        string
}

type AdminDetails struct {
	Email      string
	Role       domain.Role
	IsActive   bool
	IsVerified bool
}

type DatabaseCheck struct {
	Status       string
	UserCount    int64
	AdminExists  bool
	AdminDetails *AdminDetails
}

// DiagnosticsReport is the outcome of one probe. Error is user-safe text.
type DiagnosticsReport struct {
	Environment EnvironmentCheck
	Database    DatabaseCheck
	Error       string
	Timestamp   time.Time
}

func (r DiagnosticsReport) OK() bool {
	return r.Database.Status == StatusConnected
}

// DiagnosticsService reports environment readiness and datastore reachability.
type DiagnosticsService interface {
	Probe(ctx context.Context) DiagnosticsReport
}

type diagnosticsService struct {
	conn   Connector
	cfg    DiagnosticsConfig
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewDiagnosticsService(conn Connector, cfg DiagnosticsConfig, logger logrus.FieldLogger) DiagnosticsService {
	if strings.TrimSpace(cfg.AdminEmail) == "" {
		cfg.AdminEmail = DefaultAdminEmail
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &diagnosticsService{
		conn:   conn,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *diagnosticsService) Probe(ctx context.Context) DiagnosticsReport {
	report := DiagnosticsReport{
		Environment: EnvironmentCheck{
			DatastoreDescriptor: presence(s.cfg.DescriptorSet),
			SigningSecret:       presence(s.cfg.SecretSet),
			ExecutionEnv:        s.cfg.Environment,
		},
		Timestamp: s.now().UTC(),
	}
	if strings.TrimSpace(report.Environment.ExecutionEnv) == "" {
		report.Environment.ExecutionEnv = "Not set"
	}

	users, err := s.conn.EnsureReady(ctx)
	if err != nil {
		return s.fail(report, err)
	}

	admin, err := users.GetByEmail(ctx, strings.ToLower(s.cfg.AdminEmail))
	switch {
	case err == nil:
		report.Database.AdminExists = true
		report.Database.AdminDetails = &AdminDetails{
			Email:      admin.Email,
			Role:       admin.Role,
			IsActive:   admin.IsActive,
			IsVerified: admin.IsVerified,
		}
	case errors.Is(err, repository.ErrUserNotFound):
	default:
		return s.fail(report, err)
	}

	count, err := users.Count(ctx)
	if err != nil {
		return s.fail(report, err)
	}

	report.Database.Status = StatusConnected
	report.Database.UserCount = count
	return report
}

func (s *diagnosticsService) fail(report DiagnosticsReport, err error) DiagnosticsReport {
	s.logger.WithError(err).Warn("diagnostics: datastore check failed")
	report.Database = DatabaseCheck{Status: StatusFailed}
	report.Error = diagnosticMessage(err)
	return report
}

func diagnosticMessage(err error) string {
	var connErr *database.ConnectionError
	switch {
	case errors.Is(err, database.ErrDescriptorMissing):
		return "datastore descriptor is not configured"
	case errors.Is(err, sqldb.ErrUnsupportedDescriptor):
		return "datastore descriptor is not supported"
	case errors.Is(err, database.ErrConfiguration):
		return "datastore configuration error"
	case errors.As(err, &connErr):
		return "datastore is unreachable"
	default:
		return "datastore query failed"
	}
}

func presence(set bool) string {
	if set {
		return "Set"
	}
	return "Missing"
}
