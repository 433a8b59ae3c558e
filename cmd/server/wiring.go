package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"purchasegate/internal/approval/link"
	approvalmetrics "purchasegate/internal/approval/metrics"
	approvalsvc "purchasegate/internal/approval/service"
	approvalstore "purchasegate/internal/approval/store"
	"purchasegate/internal/audit"
	"purchasegate/internal/catalog"
	consentmetrics "purchasegate/internal/consent/metrics"
	consentsvc "purchasegate/internal/consent/service"
	consentstore "purchasegate/internal/consent/store"
	entmetrics "purchasegate/internal/entitlement/metrics"
	entsvc "purchasegate/internal/entitlement/service"
	entstore "purchasegate/internal/entitlement/store"
	"purchasegate/internal/family"
	ledgermetrics "purchasegate/internal/ledger/metrics"
	ledgersvc "purchasegate/internal/ledger/service"
	ledgerstore "purchasegate/internal/ledger/store"
	"purchasegate/internal/notification"
	"purchasegate/internal/payment"
	"purchasegate/internal/platform/config"
	"purchasegate/internal/platform/kafka/producer"
	"purchasegate/internal/platform/redis"
	"purchasegate/internal/platform/tracer"
	purchasemetrics "purchasegate/internal/purchase/metrics"
	purchasesvc "purchasegate/internal/purchase/service"
	purchasestore "purchasegate/internal/purchase/store"
	"purchasegate/pkg/domain"
	"purchasegate/pkg/platform/circuit"
)

// directory is the family directory as both the read port and the seeder's
// write port.
type directory interface {
	purchasesvc.FamilyDirectory
	family.Writer
	ParentContact(ctx context.Context, parentID domain.ParentID) (*family.Parent, error)
}

// stores groups the persistence layer. With a database every store is
// Postgres; otherwise everything lives in memory and commits run under the
// in-memory per-child lock.
type stores struct {
	family       directory
	trail        audit.Store
	consent      consentstore.Store
	consentTx    consentsvc.StoreTx
	ledger       ledgerstore.Store
	entitlements entstore.Store
	attempts     purchasestore.Store
	purchaseTx   purchasesvc.TxRunner
}

func newStores(db *sql.DB) *stores {
	if db != nil {
		return &stores{
			family:       family.NewPostgres(db),
			trail:        audit.NewPostgres(db),
			consent:      consentstore.NewPostgres(db),
			consentTx:    consentstore.NewPostgresTxRunner(db),
			ledger:       ledgerstore.NewPostgres(db),
			entitlements: entstore.NewPostgres(db),
			attempts:     purchasestore.NewPostgres(db),
			purchaseTx:   purchasestore.NewPostgresTxRunner(db),
		}
	}

	trail := audit.NewInMemoryStore()
	consent := consentstore.NewInMemory()
	ledger := ledgerstore.NewInMemory()
	entitlements := entstore.NewInMemory()
	attempts := purchasestore.NewInMemory()
	return &stores{
		family:       family.NewInMemoryDirectory(),
		trail:        trail,
		consent:      consent,
		consentTx:    consentstore.NewInMemoryTx(consent, trail),
		ledger:       ledger,
		entitlements: entitlements,
		attempts:     attempts,
		purchaseTx:   purchasestore.NewInMemoryTx(attempts, ledger, entitlements, trail),
	}
}

func newApprovalStore(cfg *config.Config, db *sql.DB, rdb *redis.Client) (approvalstore.Store, error) {
	switch cfg.ApprovalStore {
	case "postgres":
		return approvalstore.NewPostgres(db), nil
	case "redis":
		return approvalstore.NewRedis(rdb.Client, approvalstore.WithRetention(cfg.Sweep.Retention)), nil
	case "memory":
		return approvalstore.NewInMemory(), nil
	default:
		return nil, fmt.Errorf("unknown approval store %q", cfg.ApprovalStore)
	}
}

// newSink fans notifications out to every configured channel. The log sink
// is always present so local runs show the approval links.
func newSink(ctx context.Context, cfg *config.Config, kafka *producer.Producer, contacts notification.ContactLookup, logger *slog.Logger) (notification.Sink, error) {
	sinks := notification.Fanout{notification.NewLogSink(logger)}
	if kafka != nil {
		sinks = append(sinks, notification.NewKafkaSink(kafka, cfg.Kafka.Topic))
	}
	if cfg.Email.Sender != "" {
		ses, err := notification.NewSESClient(ctx, cfg.Email.Region)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, notification.NewEmailSink(ses, contacts, cfg.Email.Sender))
	}
	return sinks, nil
}

type services struct {
	consent      *consentsvc.Service
	ledger       *ledgersvc.Service
	entitlements *entsvc.Service
	approvals    *approvalsvc.Service
	purchases    *purchasesvc.Service
	payments     *payment.Guarded
	signer       *link.Signer
}

type serviceDeps struct {
	cfg       *config.Config
	stores    *stores
	approvals approvalstore.Store
	catalog   catalog.Store
	notifier  *notification.Dispatcher
	auditor   *audit.Publisher
	logger    *slog.Logger
}

func newServices(d serviceDeps) (*services, error) {
	cfg := d.cfg

	loc, err := cfg.LedgerLocation()
	if err != nil {
		return nil, err
	}
	share, err := decimal.NewFromString(cfg.Purchase.CreatorShare)
	if err != nil {
		return nil, fmt.Errorf("purchase.creator_share: %w", err)
	}
	signer, err := link.NewSigner(cfg.Auth.JWTSigningKey, cfg.Auth.LinkBaseURL, cfg.Auth.Issuer)
	if err != nil {
		return nil, err
	}

	consent := consentsvc.New(d.stores.consent, d.stores.consentTx, d.stores.family,
		consentsvc.WithMetrics(consentmetrics.New()),
		consentsvc.WithLogger(d.logger),
	)
	ledger := ledgersvc.New(d.stores.ledger,
		ledgersvc.WithLocation(loc),
		ledgersvc.WithRefundWindow(cfg.Purchase.RefundWindow),
		ledgersvc.WithMetrics(ledgermetrics.New()),
		ledgersvc.WithLogger(d.logger),
	)
	entitlements := entsvc.New(d.stores.entitlements,
		entsvc.WithMetrics(entmetrics.New()),
		entsvc.WithLogger(d.logger),
	)
	approvals := approvalsvc.New(d.approvals,
		approvalsvc.WithTTL(cfg.Purchase.ApprovalTTL),
		approvalsvc.WithRedeemWindow(cfg.Purchase.RedeemWindow),
		approvalsvc.WithRetention(cfg.Sweep.Retention),
		approvalsvc.WithNotifier(d.notifier),
		approvalsvc.WithLinkSigner(signer),
		approvalsvc.WithMetrics(approvalmetrics.New()),
		approvalsvc.WithLogger(d.logger),
	)

	breaker := circuit.New("payment",
		circuit.WithFailureThreshold(cfg.Payment.BreakerThreshold),
		circuit.WithCooldown(cfg.Payment.BreakerCooldown),
	)
	payments := payment.NewGuarded(payment.NewSandbox(), breaker,
		payment.WithTimeout(cfg.Payment.Timeout),
		payment.WithLogger(d.logger),
	)

	purchases, err := purchasesvc.New(purchasesvc.Deps{
		Attempts:     d.stores.attempts,
		Tx:           d.stores.purchaseTx,
		Consent:      consent,
		Family:       d.stores.family,
		Catalog:      d.catalog,
		Approvals:    approvals,
		Ledger:       ledger,
		Entitlements: entitlements,
		Payments:     payments,
	},
		purchasesvc.WithNotifier(d.notifier),
		purchasesvc.WithAuditPublisher(d.auditor),
		purchasesvc.WithTracer(tracer.NewOTel()),
		purchasesvc.WithCreatorShare(share),
		purchasesvc.WithSettleTimeout(cfg.Purchase.SettleTimeout),
		purchasesvc.WithMetrics(purchasemetrics.New()),
		purchasesvc.WithLogger(d.logger),
	)
	if err != nil {
		return nil, err
	}

	return &services{
		consent:      consent,
		ledger:       ledger,
		entitlements: entitlements,
		approvals:    approvals,
		purchases:    purchases,
		payments:     payments,
		signer:       signer,
	}, nil
}
