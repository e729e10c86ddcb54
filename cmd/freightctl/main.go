package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/mmdatafocus/freight_backend/config"
	"github.com/mmdatafocus/freight_backend/freight"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/storage/mysql"
	"github.com/mmdatafocus/freight_backend/utils"
	"github.com/mmdatafocus/freight_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Globals struct {
	DSN     string        `long:"dsn" env:"FREIGHT_DSN" help:"MySQL DSN; defaults to the DB_* environment"`
	LockTTL time.Duration `long:"lock-ttl" help:"Redis document lock TTL; defaults to DOCUMENT_LOCK_TTL_SECONDS or 30s"`
}

type MigrateCmd struct{}

type AuditCmd struct{}

type SubmitBookingCmd struct {
	ID int `arg:"" help:"Booking order id"`
}

type CancelBookingCmd struct {
	ID int `arg:"" help:"Booking order id"`
}

type SubmitLoadingCmd struct {
	ID int `arg:"" help:"Loading operation id"`
}

type CancelLoadingCmd struct {
	ID int `arg:"" help:"Loading operation id"`
}

type CompleteShippingCmd struct {
	ID               int  `arg:"" help:"Shipping order id"`
	SkipOnboardCheck bool `long:"skip-onboard-check" help:"Complete even if cargo is still on board"`
}

type DeliverCmd struct {
	BookingOrder int                 `long:"booking-order" required:"" help:"Booking order id"`
	Detail       int                 `long:"detail" required:"" help:"Freight detail id"`
	Qty          string              `long:"qty" required:"" help:"Quantity handed over"`
	Unit         models.FreightBasis `long:"unit" default:"Packages" enum:"Packages,Weight" help:"Unit of qty"`
}

type DeadCmd struct {
	Limit int `short:"n" long:"limit" help:"Maximum records to list" default:"100"`
}

type ReplayCmd struct {
	IDs []int `long:"id" help:"Outbox record id to replay (repeatable)" required:""`
}

type FreightCli struct {
	Globals

	Migrate          MigrateCmd          `cmd:"" help:"Create or update the freight tables."`
	Audit            AuditCmd            `cmd:"" help:"Check booking log conservation for every submitted booking order."`
	SubmitBooking    SubmitBookingCmd    `cmd:"" help:"Submit a draft booking order."`
	CancelBooking    CancelBookingCmd    `cmd:"" help:"Cancel a booking order that has not moved."`
	SubmitLoading    SubmitLoadingCmd    `cmd:"" help:"Submit a draft loading operation."`
	CancelLoading    CancelLoadingCmd    `cmd:"" help:"Cancel a submitted loading operation."`
	CompleteShipping CompleteShippingCmd `cmd:"" help:"Complete a shipping order stopped at its final station."`
	Deliver          DeliverCmd          `cmd:"" help:"Hand freight over to the consignee at the destination."`
	Dead             DeadCmd             `cmd:"" help:"List outbox jobs that exhausted their attempts."`
	Replay           ReplayCmd           `cmd:"" help:"Requeue dead outbox jobs."`
}

func (g *Globals) open() (*gorm.DB, error) {
	dsn := strings.TrimSpace(g.DSN)
	if dsn == "" {
		dsn = config.DatabaseDSN()
	}
	return config.OpenDatabase(dsn)
}

// locker shares Redis document locks with every other writer when
// REDIS_ADDRESS is set; otherwise locks only cover this process.
func (g *Globals) locker() utils.DocumentLocker {
	if os.Getenv("REDIS_ADDRESS") == "" {
		logrus.Warn("REDIS_ADDRESS not set; document locks are local to this process")
		return utils.NewLocalLocker()
	}
	ttl := g.LockTTL
	if ttl <= 0 {
		ttl = config.DocumentLockTTL()
	}
	config.ConnectRedisWithRetry()
	return utils.NewRedisLocker(config.GetRedisLock(), ttl)
}

func (g *Globals) service() (*freight.Service, error) {
	db, err := g.open()
	if err != nil {
		return nil, err
	}
	return freight.NewService(mysql.New(db), freight.WithLocker(g.locker())), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (cmd *MigrateCmd) Run(cli *FreightCli) error {
	db, err := cli.open()
	if err != nil {
		return err
	}
	if err := models.MigrateTable(db); err != nil {
		return err
	}
	logrus.Info("migration done.")
	return nil
}

func (cmd *AuditCmd) Run(ctx context.Context, cli *FreightCli) error {
	svc, err := cli.service()
	if err != nil {
		return err
	}
	if err := svc.AuditLedger(ctx); err != nil {
		return err
	}
	logrus.Info("booking log is balanced.")
	return nil
}

func (cmd *SubmitBookingCmd) Run(ctx context.Context, cli *FreightCli) error {
	svc, err := cli.service()
	if err != nil {
		return err
	}
	bo, err := svc.SubmitBookingOrder(ctx, cmd.ID)
	if err != nil {
		return err
	}
	return printJSON(bo)
}

func (cmd *CancelBookingCmd) Run(ctx context.Context, cli *FreightCli) error {
	svc, err := cli.service()
	if err != nil {
		return err
	}
	bo, err := svc.CancelBookingOrder(ctx, cmd.ID)
	if err != nil {
		return err
	}
	return printJSON(bo)
}

func (cmd *SubmitLoadingCmd) Run(ctx context.Context, cli *FreightCli) error {
	svc, err := cli.service()
	if err != nil {
		return err
	}
	op, err := svc.SubmitLoadingOperation(ctx, cmd.ID)
	if err != nil {
		return err
	}
	return printJSON(op)
}

func (cmd *CancelLoadingCmd) Run(ctx context.Context, cli *FreightCli) error {
	svc, err := cli.service()
	if err != nil {
		return err
	}
	op, err := svc.CancelLoadingOperation(ctx, cmd.ID)
	if err != nil {
		return err
	}
	return printJSON(op)
}

func (cmd *CompleteShippingCmd) Run(ctx context.Context, cli *FreightCli) error {
	svc, err := cli.service()
	if err != nil {
		return err
	}
	so, err := svc.SetShippingOrderCompleted(ctx, cmd.ID, !cmd.SkipOnboardCheck)
	if err != nil {
		return err
	}
	return printJSON(so)
}

func (cmd *DeliverCmd) delivery() (models.NewDelivery, error) {
	qty, err := decimal.NewFromString(strings.TrimSpace(cmd.Qty))
	if err != nil {
		return models.NewDelivery{}, models.NewValidationError("qty %q is not a number", cmd.Qty)
	}
	return models.NewDelivery{BookingOrderId: cmd.BookingOrder, BoDetailId: cmd.Detail, Qty: qty, Unit: cmd.Unit}, nil
}

func (cmd *DeliverCmd) Run(ctx context.Context, cli *FreightCli) error {
	input, err := cmd.delivery()
	if err != nil {
		return err
	}
	svc, err := cli.service()
	if err != nil {
		return err
	}
	bo, err := svc.Deliver(ctx, input)
	if err != nil {
		return err
	}
	return printJSON(bo)
}

func (cmd *DeadCmd) Run(ctx context.Context, cli *FreightCli) error {
	db, err := cli.open()
	if err != nil {
		return err
	}
	records, err := workflow.DeadOutboxRecords(ctx, db, cmd.Limit)
	if err != nil {
		return err
	}
	return printJSON(records)
}

func (cmd *ReplayCmd) Run(ctx context.Context, cli *FreightCli) error {
	db, err := cli.open()
	if err != nil {
		return err
	}
	replayed, err := workflow.ReplayOutboxRecords(ctx, db, cmd.IDs)
	if err != nil {
		return err
	}
	fmt.Printf("replayed %d of %d records\n", replayed, len(cmd.IDs))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := FreightCli{}
	kctx := kong.Parse(&cli,
		kong.Name("freightctl"),
		kong.Description("Maintenance and document commands for the freight backend."),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err := kctx.Run(&cli); err != nil {
		logrus.Errorf("failed to run command: %v", err)
		os.Exit(1)
	}
}
