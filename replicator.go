package replica

import (
	"context"
	goerrors "errors"

	"github.com/pgtools/go-pq-replica/config"
	"github.com/pgtools/go-pq-replica/internal/metric"
	"github.com/pgtools/go-pq-replica/logger"
	"github.com/pgtools/go-pq-replica/pq"
	"github.com/pgtools/go-pq-replica/pq/preflight"
	"github.com/pgtools/go-pq-replica/pq/publication"
	"github.com/pgtools/go-pq-replica/pq/status"
	"github.com/pgtools/go-pq-replica/pq/subscription"
)

// Stage is the orchestration state. Stages run in a forced sequence; each one
// is a precondition for the next, and the first fatal error moves the run to
// StageFailed.
type Stage string

const (
	StageStart             Stage = "start"
	StagePrimaryConnected  Stage = "primary_connected"
	StagePreflightPassed   Stage = "preflight_passed"
	StagePublicationReady  Stage = "publication_ready"
	StageReplicaConnected  Stage = "replica_connected"
	StageSubscriptionReady Stage = "subscription_ready"
	StageStatusReported    Stage = "status_reported"
	StageDone              Stage = "done"
	StageFailed            Stage = "failed"
)

type ConnectFunc func(ctx context.Context, dsn string) (pq.Connection, error)

type Result struct {
	Preflight    *preflight.Result  `json:"preflight"`
	Publication  *publication.Info  `json:"publication"`
	Subscription *subscription.Info `json:"subscription"`
	Report       *status.Report     `json:"report,omitempty"`
	// ReportingErr records a swallowed status reporting failure. The run still
	// counts as successful when it is set.
	ReportingErr error `json:"-"`
}

type Replicator interface {
	Setup(ctx context.Context) (*Result, error)
	Preflight(ctx context.Context) (*preflight.Result, error)
	Status(ctx context.Context) (*status.Report, error)
	Stage() Stage
	GetConfig() *config.Config
	Registry() metric.Registry
}

type replicator struct {
	cfg      config.Config
	metric   metric.Metric
	registry metric.Registry
	connect  ConnectFunc
	stage    Stage
}

func New(cfg config.Config) (Replicator, error) {
	cfg.SetDefault()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.InitLogger(cfg.Logger.Logger)
	cfg.Print()

	m := metric.NewMetric(cfg.Publication.Name)

	return &replicator{
		cfg:      cfg,
		metric:   m,
		registry: metric.NewRegistry(m),
		connect:  pq.NewConnection,
		stage:    StageStart,
	}, nil
}

// Setup configures logical replication between the primary and the replica.
// Publication and subscription creation are idempotent, so re-running Setup
// after a failure is the recovery mechanism; nothing created in earlier stages
// is rolled back.
func (r *replicator) Setup(ctx context.Context) (*Result, error) {
	r.metric.SetupRunIncrement()
	r.stage = StageStart

	result := &Result{}

	if err := r.primaryStages(ctx, result); err != nil {
		return nil, r.fail(err)
	}

	if err := r.replicaStages(ctx, result); err != nil {
		return nil, r.fail(err)
	}

	r.transition(StageDone)
	r.metric.SetLastRunSuccess(true)

	logger.Info("replication setup completed",
		"publication", result.Publication.Name,
		"subscription", result.Subscription.Name,
	)
	logger.Info("initial data synchronization runs in the background and may take a while")
	logger.Info("monitor replication lag via pg_stat_replication on the primary")
	logger.Info("monitor subscription state via pg_stat_subscription on the replica")

	return result, nil
}

// primaryStages holds the primary connection only as long as preflight and
// publication setup need it.
func (r *replicator) primaryStages(ctx context.Context, result *Result) error {
	logger.Info("connecting to primary", "host", r.cfg.Primary.Host, "server", r.cfg.Primary.ServerName)

	conn, err := r.connect(ctx, r.cfg.Primary.DSN())
	if err != nil {
		return &pq.ConnectivityError{Host: r.cfg.Primary.Host, Err: err}
	}
	defer func() {
		if closeErr := conn.Close(context.Background()); closeErr != nil {
			logger.Warn("primary connection close", "error", closeErr)
		}
	}()
	r.transition(StagePrimaryConnected)

	checkCtx, checkCancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer checkCancel()

	result.Preflight, err = preflight.Check(checkCtx, conn)
	if err != nil {
		return err
	}

	for _, warning := range result.Preflight.Warnings {
		logger.Warn(warning)
	}

	if !result.Preflight.Ready {
		return &preflight.Error{WalLevel: result.Preflight.Config.WalLevel}
	}
	r.transition(StagePreflightPassed)

	pubCtx, pubCancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer pubCancel()

	result.Publication, err = publication.New(r.cfg.Publication, conn).Ensure(pubCtx)
	if err != nil {
		return err
	}

	if result.Publication.Created {
		r.metric.PublicationCreatedIncrement()
	}
	r.transition(StagePublicationReady)

	return nil
}

func (r *replicator) replicaStages(ctx context.Context, result *Result) error {
	logger.Info("connecting to replica", "host", r.cfg.Replica.Host, "server", r.cfg.Replica.ServerName)

	conn, err := r.connect(ctx, r.cfg.Replica.DSN())
	if err != nil {
		return &pq.ConnectivityError{Host: r.cfg.Replica.Host, Err: err}
	}
	defer func() {
		if closeErr := conn.Close(context.Background()); closeErr != nil {
			logger.Warn("replica connection close", "error", closeErr)
		}
	}()
	r.transition(StageReplicaConnected)

	subCtx, subCancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer subCancel()

	result.Subscription, err = subscription.New(r.cfg.Subscription, conn).Ensure(subCtx, r.cfg.Primary.ConnInfo())
	if err != nil {
		return err
	}

	if result.Subscription.Created {
		r.metric.SubscriptionCreatedIncrement()
	}
	r.transition(StageSubscriptionReady)

	reportCtx, reportCancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer reportCancel()

	report, err := status.NewReporter(conn).Report(reportCtx)
	if err != nil {
		// Reporting is diagnostic, a failure here never fails the run.
		logger.Warn("replication status report failed", "error", err)
		result.ReportingErr = err
	} else {
		result.Report = report
		r.observeReport(report)
	}
	r.transition(StageStatusReported)

	return nil
}

// Preflight connects to the primary and checks its replication settings
// without changing anything.
func (r *replicator) Preflight(ctx context.Context) (*preflight.Result, error) {
	conn, err := r.connect(ctx, r.cfg.Primary.DSN())
	if err != nil {
		return nil, &pq.ConnectivityError{Host: r.cfg.Primary.Host, Err: err}
	}
	defer func() {
		_ = conn.Close(context.Background())
	}()

	checkCtx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()

	return preflight.Check(checkCtx, conn)
}

// Status connects to the replica and produces a point-in-time sync report.
func (r *replicator) Status(ctx context.Context) (*status.Report, error) {
	conn, err := r.connect(ctx, r.cfg.Replica.DSN())
	if err != nil {
		return nil, &pq.ConnectivityError{Host: r.cfg.Replica.Host, Err: err}
	}
	defer func() {
		_ = conn.Close(context.Background())
	}()

	reportCtx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()

	report, err := status.NewReporter(conn).Report(reportCtx)
	if err != nil {
		return nil, err
	}

	r.observeReport(report)

	return report, nil
}

func (r *replicator) Stage() Stage {
	return r.stage
}

func (r *replicator) GetConfig() *config.Config {
	return &r.cfg
}

func (r *replicator) Registry() metric.Registry {
	return r.registry
}

func (r *replicator) transition(s Stage) {
	r.stage = s
	logger.Debug("stage transition", "stage", s)
}

func (r *replicator) fail(err error) error {
	r.metric.SetupFailureIncrement(string(r.stage))
	r.metric.SetLastRunSuccess(false)
	r.stage = StageFailed

	logger.Error("replication setup failed", "error", err)

	var pfErr *preflight.Error
	if goerrors.As(err, &pfErr) {
		logger.Error("the primary server is not configured for logical replication")
		for _, step := range pfErr.Remediation() {
			logger.Info("remediation: " + step)
		}
	}

	return err
}

func (r *replicator) observeReport(report *status.Report) {
	counts := map[status.SyncState]float64{}
	for _, rel := range report.Relations {
		counts[rel.State]++
	}

	for _, state := range []status.SyncState{status.SyncStateInit, status.SyncStateDataSync, status.SyncStateSynced, status.SyncStateError} {
		r.metric.SetRelationSyncCount(string(state), counts[state])
	}
}
