package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/hotel-frontdesk/internal/application"
	"github.com/example/hotel-frontdesk/internal/occupancy"
)

var stateGlyphs = map[occupancy.DayState]string{
	occupancy.StateFree:         ".",
	occupancy.StateReserved:     "R",
	occupancy.StateOccupied:     "O",
	occupancy.StateOutOfService: "X",
}

func newGridCommand(root *rootOptions) *cobra.Command {
	var from, to, rooms string
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Print the occupancy grid for a window of days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := occupancy.ParseDay(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			end, err := occupancy.ParseDay(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			a, err := loadApp(root.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.openStore(cmd.Context(), false); err != nil {
				return err
			}

			var numbers []string
			for _, n := range strings.Split(rooms, ",") {
				if n = strings.TrimSpace(n); n != "" {
					numbers = append(numbers, n)
				}
			}
			grid, err := a.occupancyService(nil).BuildOccupancyGrid(cmd.Context(), application.GridRequest{
				Start:       start,
				End:         end,
				RoomNumbers: numbers,
			})
			if err != nil {
				return err
			}
			return renderGrid(cmd.OutOrStdout(), grid)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&rooms, "rooms", "", "comma separated room numbers (default all)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// renderGrid writes one row per room and one column per day.
func renderGrid(w io.Writer, grid *occupancy.Grid) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	header := []string{"ROOM"}
	for _, day := range grid.Days() {
		header = append(header, day.Format("01-02"))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, number := range grid.Rooms() {
		row, err := grid.Row(number)
		if err != nil {
			return err
		}
		line := []string{number}
		for _, cell := range row {
			line = append(line, stateGlyphs[cell.State])
		}
		fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "legend: . free  R reserved  O occupied  X out of service")
	return err
}
