package seg

import (
	"fmt"
	"strconv"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/spf13/cobra"
)

func parseInt(name, s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", name, err)
	}
	return v, nil
}

// parseRange parses the bounds of a half-open range [low, high)
func parseRange(args []string) (low, high int64, err error) {
	if low, err = parseInt("low", args[0]); err != nil {
		return
	}
	high, err = parseInt("high", args[1])
	return
}

var (
	getCmd = &cobra.Command{
		Use:   "get [key] [segment]",
		Short: "Reads a segment of a profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInt("segment", args[1])
			if err != nil {
				return err
			}
			results, err := newBatch(cmd, args[0]).
				GetByKey(id, cdt.ReturnKeyValue).
				ExecOrdered(ctxOf(cmd))
			if err != nil {
				return err
			}
			e, found := results[0].Entry()
			fmt.Fprintf(cmd.OutOrStdout(), "key=%s, segment=%d, found=%v, entry=%s\n", args[0], id, found, e)
			return nil
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [key] [segment] [hour]",
		Short: "Upserts a segment with an expiration hour",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInt("segment", args[1])
			if err != nil {
				return err
			}
			hour, err := parseInt("hour", args[2])
			if err != nil {
				return err
			}
			results, err := newBatch(cmd, args[0]).
				Put(id, cdt.NewEntry(hour)).
				ExecOrdered(ctxOf(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "put successfully, %d segments\n", results[0].Count)
			return nil
		},
	}
	sizeCmd = &cobra.Command{
		Use:   "size [key]",
		Short: "Counts the segments of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := newBatch(cmd, args[0]).Size().ExecOrdered(ctxOf(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), results[0].Count)
			return nil
		},
	}
	rangeCmd = &cobra.Command{
		Use:   "range [key] [low] [high]",
		Short: "Selects the segments with an id (or expiration hour) in [low, high)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			low, high, err := parseRange(args[1:])
			if err != nil {
				return err
			}
			by, _ := cmd.Flags().GetString("by")
			inverted, _ := cmd.Flags().GetBool("inverted")
			ret, _ := cmd.Flags().GetString("return")
			rk, err := cdt.ParseReturnKind(ret)
			if err != nil {
				return err
			}

			b := newBatch(cmd, args[0])
			switch by {
			case "value":
				b.GetByValueRange(low, high, rk, inverted)
			case "key":
				if inverted {
					return fmt.Errorf("--inverted is only supported for value ranges")
				}
				b.GetByKeyRange(low, high, rk)
			default:
				return fmt.Errorf("invalid range type %q (expected key or value)", by)
			}

			results, err := b.ExecOrdered(ctxOf(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), results[0])
			return nil
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [key] [low] [high]",
		Short: "Removes the segments with an id (or expiration hour) in [low, high)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			low, high, err := parseRange(args[1:])
			if err != nil {
				return err
			}
			by, _ := cmd.Flags().GetString("by")

			b := newBatch(cmd, args[0])
			switch by {
			case "value":
				b.RemoveByValueRange(low, high, cdt.ReturnCount, false)
			case "key":
				b.RemoveByKeyRange(low, high, cdt.ReturnCount)
			default:
				return fmt.Errorf("invalid range type %q (expected key or value)", by)
			}

			results, err := b.Size().ExecOrdered(ctxOf(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d segments, %d remaining\n", results[0].Count, results[1].Count)
			return nil
		},
	}
	incrCmd = &cobra.Command{
		Use:   "incr [key] [segment] [delta]",
		Short: "Adds delta hours to the expiration of a segment",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInt("segment", args[1])
			if err != nil {
				return err
			}
			delta, err := parseInt("delta", args[2])
			if err != nil {
				return err
			}
			results, err := newBatch(cmd, args[0]).
				IncrementTTL(id, delta).
				ExecOrdered(ctxOf(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "segment %d expires at hour %d\n", id, results[0].Number)
			return nil
		},
	}
)

func init() {
	rangeCmd.Flags().String("by", "key", "Range over segment ids (key) or expiration hours (value)")
	rangeCmd.Flags().Bool("inverted", false, "Select the segments outside of the range (value ranges only)")
	rangeCmd.Flags().String("return", "key_value", "What to return: none, count, key, value or key_value")

	removeCmd.Flags().String("by", "value", "Range over segment ids (key) or expiration hours (value)")
}
