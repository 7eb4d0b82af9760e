package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/notnil/chess"
	"github.com/spf13/cobra"

	"github.com/discochess/persona/internal/engine/evaldb"
)

var evalsLocalityCmd = &cobra.Command{
	Use:   "locality [PGN]",
	Short: "Compare sharding strategies on real games",
	Long: `Replay the positions of every game in a PGN archive against each
sharding strategy and report how often consecutive lookups change shard,
and how many lookups an LRU of decoded shards would serve.

Example:
  persona evals locality games.pgn.zst --strategies material,fnv32 --cache 128`,
	Args: cobra.ExactArgs(1),
	RunE: runEvalsLocality,
}

var (
	localityStrategies []string
	localityShards     int
	localityCache      int
	localityMaxGames   int
	localityJSON       bool
)

func init() {
	evalsLocalityCmd.Flags().StringSliceVarP(&localityStrategies, "strategies", "s", []string{"material", "fnv32"}, "strategies to compare")
	evalsLocalityCmd.Flags().IntVar(&localityShards, "shards", 32768, "total number of shards")
	evalsLocalityCmd.Flags().IntVar(&localityCache, "cache", 128, "decoded shards kept in the simulated cache")
	evalsLocalityCmd.Flags().IntVar(&localityMaxGames, "games", 0, "maximum games to replay (0 for all)")
	evalsLocalityCmd.Flags().BoolVar(&localityJSON, "json", false, "output results as JSON")
	evalsCmd.AddCommand(evalsLocalityCmd)
}

func runEvalsLocality(cmd *cobra.Command, args []string) error {
	strategies := make([]evaldb.Strategy, 0, len(localityStrategies))
	for _, name := range localityStrategies {
		s, err := evaldb.StrategyByName(name)
		if err != nil {
			return err
		}
		strategies = append(strategies, s)
	}

	src, err := openSource(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer src.Close()

	var games [][]*chess.Position
	scanner := chess.NewScanner(src)
	for scanner.Scan() {
		g := scanner.Next()
		if g == nil {
			continue
		}
		games = append(games, g.Positions())
		if localityMaxGames > 0 && len(games) >= localityMaxGames {
			break
		}
	}
	if len(games) == 0 {
		return fmt.Errorf("no games in %s", args[0])
	}

	results, err := evaldb.SimulateLocality(games, localityShards, localityCache, strategies...)
	if err != nil {
		return err
	}
	if localityJSON {
		return printJSON(os.Stdout, results)
	}

	fmt.Printf("Games: %d, shards: %d, cache: %d\n\n", len(games), localityShards, localityCache)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tLOOKUPS\tSWITCHES/GAME\tMEDIAN\tP90\tSHARDS\tGINI\tCACHE HITS")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%d\t%.1f\t%.0f\t%.0f\t%d\t%.3f\t%.1f%%\n",
			r.Strategy, r.Lookups, r.AvgSwitchesPerGame, r.MedianSwitches, r.P90Switches,
			r.UniqueShards, r.Concentration, 100*r.CacheHitRate)
	}
	return tw.Flush()
}
