package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-slot-queue/internal/app"
	"github.com/hackgods/clinic-slot-queue/internal/booking"
)

func slotKeyFlags(cmd *cobra.Command) {
	cmd.Flags().String("doctor", "", "Doctor id")
	cmd.Flags().String("date", "", "Date, YYYY-MM-DD (default today)")
	cmd.Flags().String("window", "", "Time window, HH:MM-HH:MM")
}

func readDoctorDate(cmd *cobra.Command, stack *app.Stack) (uuid.UUID, booking.SlotKey, error) {
	rawDoctor, _ := cmd.Flags().GetString("doctor")
	rawDate, _ := cmd.Flags().GetString("date")

	doctorID, err := uuid.Parse(rawDoctor)
	if err != nil {
		return uuid.Nil, booking.SlotKey{}, fmt.Errorf("--doctor must be a valid UUID")
	}

	date := stack.Registry.Today()
	if rawDate != "" {
		if date, err = booking.ParseDate(rawDate); err != nil {
			return uuid.Nil, booking.SlotKey{}, err
		}
	}
	return doctorID, booking.NewSlotKey(doctorID, date, ""), nil
}

func readSlotKey(cmd *cobra.Command, stack *app.Stack) (booking.SlotKey, error) {
	_, key, err := readDoctorDate(cmd, stack)
	if err != nil {
		return booking.SlotKey{}, err
	}

	rawWindow, _ := cmd.Flags().GetString("window")
	window, err := booking.ParseTimeWindow(rawWindow)
	if err != nil {
		return booking.SlotKey{}, err
	}
	key.Window = window
	return key, nil
}

func withStack(open opener, fn func(cmd *cobra.Command, stack *app.Stack) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		stack, err := open(cmd.Context())
		if err != nil {
			return err
		}
		defer stack.Close()
		return fn(cmd, stack)
	}
}

func provisionCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create one slot",
		RunE: withStack(open, func(cmd *cobra.Command, stack *app.Stack) error {
			key, err := readSlotKey(cmd, stack)
			if err != nil {
				return err
			}
			capacity, _ := cmd.Flags().GetInt("capacity")
			reserve, _ := cmd.Flags().GetInt("reserve")

			s, err := stack.Ledger.Provision(cmd.Context(), booking.SlotSpec{
				Key:              key,
				TotalCapacity:    capacity,
				EmergencyReserve: reserve,
			})
			if err != nil {
				return err
			}
			printSlots(cmd.OutOrStdout(), []booking.SlotRecord{s})
			return nil
		}),
	}
	slotKeyFlags(cmd)
	cmd.Flags().Int("capacity", 3, "Total capacity")
	cmd.Flags().Int("reserve", 1, "Emergency reserve")
	return cmd
}

func provisionDaysCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision-days",
		Short: "Create the standard half-hour grid for a doctor over several days",
		RunE: withStack(open, func(cmd *cobra.Command, stack *app.Stack) error {
			doctorID, key, err := readDoctorDate(cmd, stack)
			if err != nil {
				return err
			}

			opts := app.DefaultSeedOptions(key.Date)
			opts.Days, _ = cmd.Flags().GetInt("days")
			opts.Capacity, _ = cmd.Flags().GetInt("capacity")
			opts.EmergencyReserve, _ = cmd.Flags().GetInt("reserve")

			n, err := app.ProvisionDays(cmd.Context(), stack.Ledger, doctorID, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "provisioned %d slots\n", n)
			return nil
		}),
	}
	cmd.Flags().String("doctor", "", "Doctor id")
	cmd.Flags().String("date", "", "First date, YYYY-MM-DD (default today)")
	cmd.Flags().Int("days", 7, "Number of days")
	cmd.Flags().Int("capacity", 3, "Total capacity per slot")
	cmd.Flags().Int("reserve", 1, "Emergency reserve per slot")
	return cmd
}

func suspendCmd(open opener, suspend bool) *cobra.Command {
	use, short := "suspend", "Stop a slot from accepting bookings"
	if !suspend {
		use, short = "resume", "Let a suspended slot accept bookings again"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: withStack(open, func(cmd *cobra.Command, stack *app.Stack) error {
			key, err := readSlotKey(cmd, stack)
			if err != nil {
				return err
			}
			s, err := stack.Ledger.SetSuspended(cmd.Context(), key, suspend)
			if err != nil {
				return err
			}
			printSlots(cmd.OutOrStdout(), []booking.SlotRecord{s})
			return nil
		}),
	}
	slotKeyFlags(cmd)
	return cmd
}

func showCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List a doctor's slots for a day",
		RunE: withStack(open, func(cmd *cobra.Command, stack *app.Stack) error {
			doctorID, key, err := readDoctorDate(cmd, stack)
			if err != nil {
				return err
			}
			slots, err := stack.Ledger.SlotsForDoctor(cmd.Context(), doctorID, key.Date)
			if err != nil {
				return err
			}
			printSlots(cmd.OutOrStdout(), slots)
			return nil
		}),
	}
	cmd.Flags().String("doctor", "", "Doctor id")
	cmd.Flags().String("date", "", "Date, YYYY-MM-DD (default today)")
	return cmd
}

func queueCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Print a doctor's pending queue for a day",
		RunE: withStack(open, func(cmd *cobra.Command, stack *app.Stack) error {
			doctorID, key, err := readDoctorDate(cmd, stack)
			if err != nil {
				return err
			}
			list, err := stack.Queue.QueueFor(cmd.Context(), doctorID, key.Date)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "POS\tQUEUE#\tCLASS\tWINDOW\tPATIENT")
			for i, a := range list {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", i+1, a.QueueNumber, a.Class, a.Window, a.PatientID)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().String("doctor", "", "Doctor id")
	cmd.Flags().String("date", "", "Date, YYYY-MM-DD (default today)")
	return cmd
}

func expireCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Expire past-date bookings once",
		RunE: withStack(open, func(cmd *cobra.Command, stack *app.Stack) error {
			batch, _ := cmd.Flags().GetInt("batch")
			n, err := stack.Registry.ExpireOverdue(cmd.Context(), batch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d appointments\n", n)
			return nil
		}),
	}
	cmd.Flags().Int("batch", 500, "Maximum records to expire")
	return cmd
}

func printSlots(w io.Writer, slots []booking.SlotRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tWINDOW\tSTATUS\tUSED\tTOTAL\tRESERVE\tNORMAL\tEMERGENCY")
	for _, s := range slots {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			booking.FormatDate(s.Key.Date), s.Key.Window, s.Status(),
			s.UsedCount, s.TotalCapacity, s.EmergencyReserve,
			s.NormalAvailable(), s.EmergencyAvailable())
	}
	_ = tw.Flush()
}
