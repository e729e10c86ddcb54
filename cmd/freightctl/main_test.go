package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (*FreightCli, *kong.Context) {
	t.Helper()
	cli := &FreightCli{}
	parser, err := kong.New(cli, kong.Name("freightctl"), kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return cli, kctx
}

func TestDeliverCommand(t *testing.T) {
	cli, kctx := parse(t, "--lock-ttl", "45s", "deliver", "--booking-order", "3", "--detail", "7", "--qty", "12.5", "--unit", "Weight")
	assert.Equal(t, "deliver", kctx.Command())
	assert.Equal(t, 45*time.Second, cli.LockTTL)

	input, err := cli.Deliver.delivery()
	require.NoError(t, err)
	assert.Equal(t, 3, input.BookingOrderId)
	assert.Equal(t, 7, input.BoDetailId)
	assert.Equal(t, models.FreightBasisWeight, input.Unit)
	assert.Equal(t, "12.5", input.Qty.String())

	cli.Deliver.Qty = "a dozen"
	_, err = cli.Deliver.delivery()
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestDocumentCommands(t *testing.T) {
	cli, kctx := parse(t, "cancel-loading", "42")
	assert.Equal(t, "cancel-loading <id>", kctx.Command())
	assert.Equal(t, 42, cli.CancelLoading.ID)

	cli, _ = parse(t, "complete-shipping", "9", "--skip-onboard-check")
	assert.Equal(t, 9, cli.CompleteShipping.ID)
	assert.True(t, cli.CompleteShipping.SkipOnboardCheck)
}

func TestLockerWithoutRedisIsLocal(t *testing.T) {
	t.Setenv("REDIS_ADDRESS", "")
	g := &Globals{}
	release, err := g.locker().Lock(context.Background(), "lock:Booking Order:1")
	require.NoError(t, err)
	release()
}
