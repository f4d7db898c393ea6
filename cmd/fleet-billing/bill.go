package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vnmchuo/fleet-billing/config"
	"github.com/vnmchuo/fleet-billing/internal/api"
	"github.com/vnmchuo/fleet-billing/internal/billing"
	"github.com/vnmchuo/fleet-billing/internal/metrics"
)

var billFlags struct {
	customer string
	vehicles []string
	start    string
	end      string
	request  string
	format   string
}

var billCmd = &cobra.Command{
	Use:   "bill",
	Short: "Calculate one bill and print it",
	Example: `  fleet-billing bill --customer "Bob's Taxis" --vehicle "CBDH 789" --start 2025-04-28 --end 2025-05-05
  fleet-billing bill --request request.json --format text`,
	RunE: runBill,
}

func init() {
	f := billCmd.Flags()
	f.StringVar(&billFlags.customer, "customer", "", "customer name")
	f.StringArrayVar(&billFlags.vehicles, "vehicle", nil, "vehicle license plate (repeatable)")
	f.StringVar(&billFlags.start, "start", "", "period start (ISO-8601)")
	f.StringVar(&billFlags.end, "end", "", "period end (ISO-8601)")
	f.StringVar(&billFlags.request, "request", "", `JSON request file, "-" for stdin`)
	f.StringVar(&billFlags.format, "format", "json", "output format: json or text")
	rootCmd.AddCommand(billCmd)
}

var outputTypes = map[string]string{
	"json": "application/json",
	"text": "text/plain",
}

func runBill(cmd *cobra.Command, args []string) error {
	contentType, ok := outputTypes[billFlags.format]
	if !ok {
		return fmt.Errorf("unknown format %q", billFlags.format)
	}
	req, err := billRequest(cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := newCalculator(cfg, metrics.NopSink{}).Bill(ctx, req)
	if err != nil {
		var verr *billing.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("invalid request: %s", verr.Error())
		}
		return err
	}

	body, err := api.DefaultFormatters().For(contentType).Format(res)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if _, err := out.Write(body); err != nil {
		return err
	}
	if contentType == "application/json" {
		_, err = fmt.Fprintln(out)
	}
	return err
}

func billRequest(stdin io.Reader) (*billing.BillingRequest, error) {
	if billFlags.request != "" {
		var data []byte
		var err error
		if billFlags.request == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(billFlags.request)
		}
		if err != nil {
			return nil, fmt.Errorf("read request: %w", err)
		}
		var req billing.BillingRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("parse request: %w", err)
		}
		return &req, nil
	}

	req := &billing.BillingRequest{Customer: billFlags.customer, Vehicles: billFlags.vehicles}
	var err error
	if req.StartDate, err = flagTime("start", billFlags.start); err != nil {
		return nil, err
	}
	if req.EndDate, err = flagTime("end", billFlags.end); err != nil {
		return nil, err
	}
	return req, nil
}

func flagTime(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := billing.ParseTimestamp(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}
