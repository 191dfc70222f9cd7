// Command xpcurve inspects the XP level curve from the terminal: per-level
// thresholds, reverse lookups, and award simulations against the catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/google/subcommands"

	"learnxp/core"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&thresholdCmd{}, "curve")
	subcommands.Register(&levelCmd{}, "curve")
	subcommands.Register(&tableCmd{}, "curve")
	subcommands.Register(&simulateCmd{}, "curve")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

type thresholdCmd struct{}

func (*thresholdCmd) Name() string     { return "threshold" }
func (*thresholdCmd) Synopsis() string { return "print the cumulative XP required for a level" }
func (*thresholdCmd) Usage() string {
	return `threshold <level>:
  Print the cumulative XP required to reach the given level.
`
}
func (*thresholdCmd) SetFlags(_ *flag.FlagSet) {}

func (c *thresholdCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	level, err := strconv.ParseInt(f.Arg(0), 10, 64)
	if err != nil || level < 1 {
		fmt.Fprintln(os.Stderr, "level must be a positive integer")
		return subcommands.ExitUsageError
	}
	fmt.Printf("level %d requires %d XP\n", level, core.Threshold(level))
	return subcommands.ExitSuccess
}

type levelCmd struct{}

func (*levelCmd) Name() string     { return "level" }
func (*levelCmd) Synopsis() string { return "print the level reached with a given XP total" }
func (*levelCmd) Usage() string {
	return `level <xp>:
  Print the level a user holds with the given cumulative XP.
`
}
func (*levelCmd) SetFlags(_ *flag.FlagSet) {}

func (c *levelCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	xp, err := strconv.ParseInt(f.Arg(0), 10, 64)
	if err != nil || xp < 0 {
		fmt.Fprintln(os.Stderr, "xp must be a non-negative integer")
		return subcommands.ExitUsageError
	}
	level := core.LevelFromXP(xp)
	fmt.Printf("%d XP puts a user at level %d (%d XP to level %d)\n",
		xp, level, core.XPForNextLevel(level)-xp, level+1)
	return subcommands.ExitSuccess
}

type tableCmd struct {
	from int64
	to   int64
}

func (*tableCmd) Name() string     { return "table" }
func (*tableCmd) Synopsis() string { return "print a threshold table for a range of levels" }
func (*tableCmd) Usage() string {
	return `table [-from N] [-to N]:
  Print a table of level thresholds, step sizes, milestones and tiers.
`
}

func (c *tableCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.from, "from", 1, "first level to print")
	f.Int64Var(&c.to, "to", 25, "last level to print")
}

func (c *tableCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.from < 1 || c.to < c.from {
		fmt.Fprintln(os.Stderr, "invalid level range")
		return subcommands.ExitUsageError
	}
	cat := core.DefaultCatalog()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tTHRESHOLD\tSTEP\tTIER\tMILESTONE")
	for level := c.from; level <= c.to; level++ {
		step := core.Threshold(level)
		if level > 1 {
			step -= core.Threshold(level - 1)
		}
		milestone := ""
		if cat.IsMilestoneLevel(level) {
			milestone = "*"
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\n",
			level, core.Threshold(level), step, cat.AchievementForLevel(level), milestone)
	}
	tw.Flush()
	return subcommands.ExitSuccess
}

type simulateCmd struct {
	start int64
}

func (*simulateCmd) Name() string     { return "simulate" }
func (*simulateCmd) Synopsis() string { return "simulate a sequence of XP awards" }
func (*simulateCmd) Usage() string {
	return `simulate [-start XP] <amount> [<amount> ...]:
  Apply a sequence of XP awards and print the resulting level and badge
  milestones after each one.
`
}

func (c *simulateCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.start, "start", 0, "starting XP total")
}

func (c *simulateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	if c.start < 0 {
		fmt.Fprintln(os.Stderr, "start must be non-negative")
		return subcommands.ExitUsageError
	}

	cat := core.DefaultCatalog()
	total := c.start
	level := core.LevelFromXP(total)
	held := map[core.Badge]struct{}{}
	for _, b := range cat.AwardableBadges(map[core.Badge]struct{}{}, level) {
		held[b] = struct{}{}
	}

	fmt.Printf("start: %d XP, level %d\n", total, level)
	for _, arg := range f.Args() {
		amount, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || amount < 0 {
			fmt.Fprintf(os.Stderr, "invalid amount %q\n", arg)
			return subcommands.ExitUsageError
		}
		next, err := core.AddSafe(total, amount)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			return subcommands.ExitFailure
		}
		total = next
		newLevel := core.LevelFromXP(total)
		line := fmt.Sprintf("+%d -> %d XP, level %d", amount, total, newLevel)
		if newLevel > level {
			for _, b := range cat.AwardableBadges(held, newLevel) {
				held[b] = struct{}{}
				line += fmt.Sprintf(", badge %s", b)
			}
			line += fmt.Sprintf(" (tier %s)", cat.AchievementForLevel(newLevel))
		}
		fmt.Println(line)
		level = newLevel
	}
	return subcommands.ExitSuccess
}
