package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/park285/chess-uci/internal/httpapi"
	"github.com/park285/chess-uci/internal/msgcat"
	"github.com/park285/chess-uci/internal/notation"
	"github.com/park285/chess-uci/internal/obslog"
	"github.com/park285/chess-uci/internal/uci"
	"github.com/park285/chess-uci/pkg/analysisdto"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "uci-analyze: %v\n", err)
		os.Exit(1)
	}
}

func positionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "fen", Usage: "start position in FEN (default: initial position)"},
		&cli.StringFlag{Name: "moves", Aliases: []string{"m"}, Usage: "moves in long algebraic notation, space or comma separated"},
		&cli.StringFlag{Name: "san", Usage: "SAN movetext, e.g. \"1. e4 e5 2. Nf3\""},
		&cli.IntFlag{Name: "lines", Aliases: []string{"n"}, Value: 1, Usage: "number of best lines (MultiPV)"},
		&cli.IntFlag{Name: "elo", Usage: "cap engine strength at this Elo (0: no cap)"},
		&cli.StringFlag{Name: "messages", Usage: "directory with YAML output template overrides"},
		&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Value: "warn", Usage: "logger level"},
	}
}

func serverFlag() cli.Flag {
	return &cli.StringFlag{Name: "server", Aliases: []string{"s"}, Value: "http://localhost:8080", Usage: "analysis server base URL", Sources: cli.EnvVars("ANALYSIS_SERVER")}
}

func newCommand() *cli.Command {
	local := append(positionFlags(),
		&cli.StringFlag{Name: "engine", Aliases: []string{"e"}, Usage: "path to the UCI engine", Sources: cli.EnvVars("ENGINE_PATH", "STOCKFISH_PATH")},
		&cli.DurationFlag{Name: "think", Aliases: []string{"t"}, Value: time.Second, Usage: "search time; the search runs infinite and is stopped after it"},
	)
	remote := append(positionFlags(),
		serverFlag(),
		&cli.DurationFlag{Name: "think", Aliases: []string{"t"}, Value: time.Second, Usage: "search time requested from the server"},
	)

	return &cli.Command{
		Name:  "uci-analyze",
		Usage: "analyse a chess position with a UCI engine",
		Flags: local,
		Commands: []*cli.Command{
			{
				Name:   "remote",
				Usage:  "analyse through an analysis server",
				Flags:  remote,
				Action: runRemote,
			},
			{
				Name:  "report",
				Usage: "print a stored report from an analysis server",
				Flags: []cli.Flag{
					serverFlag(),
					&cli.StringFlag{Name: "id", Usage: "report id", Required: true},
					&cli.StringFlag{Name: "messages", Usage: "directory with YAML output template overrides"},
				},
				Action: runReport,
			},
		},
		Action: runLocal,
	}
}

type position struct {
	fen   string
	moves []string
}

func readPosition(c *cli.Command) (position, error) {
	pos := position{fen: strings.TrimSpace(c.String("fen"))}
	if err := notation.ValidateFEN(pos.fen); err != nil {
		return pos, err
	}
	moves := strings.FieldsFunc(c.String("moves"), func(r rune) bool { return r == ' ' || r == ',' })
	san := strings.TrimSpace(c.String("san"))
	switch {
	case san != "" && len(moves) > 0:
		return pos, fmt.Errorf("--moves and --san are mutually exclusive")
	case san != "":
		lan, err := notation.SANToLAN(pos.fen, notation.ParseMovetext(san))
		if err != nil {
			return pos, err
		}
		pos.moves = lan
	default:
		pos.moves = moves
	}
	return pos, nil
}

func newLogger(c *cli.Command) (*zap.Logger, error) {
	return obslog.New(obslog.Options{
		Level:   c.String("log-level"),
		Format:  "console",
		Console: true,
		Output:  os.Stderr,
	})
}

func runLocal(ctx context.Context, c *cli.Command) error {
	enginePath := strings.TrimSpace(c.String("engine"))
	if enginePath == "" {
		return fmt.Errorf("--engine or ENGINE_PATH is required")
	}
	pos, err := readPosition(c)
	if err != nil {
		return err
	}
	cat, err := msgcat.New(c.String("messages"))
	if err != nil {
		return err
	}
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	session, err := uci.Start(ctx, enginePath, uci.Options{
		BestLines: int(c.Int("lines")),
		MaxElo:    int(c.Int("elo")),
	}, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Setup(ctx, uci.Position{FEN: pos.fen, Moves: pos.moves}); err != nil {
		return err
	}
	if err := session.StartCalculating(ctx, 0); err != nil {
		return err
	}
	timer := time.NewTimer(c.Duration("think"))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := session.StopCalculating(ctx); err != nil {
		return err
	}

	id := session.ID()
	if id.Name != "" {
		if err := printf(cat, "analysis.engine", map[string]any{"Name": id.Name, "Author": id.Author}); err != nil {
			return err
		}
	}
	if code, title := notation.Opening(pos.fen, pos.moves); code != "" {
		if err := printf(cat, "analysis.opening", map[string]any{"Code": code, "Title": title}); err != nil {
			return err
		}
	}

	afterFEN := ""
	if game, err := notation.BuildGame(pos.fen, pos.moves); err == nil {
		afterFEN = game.FEN()
	}
	for i, line := range session.TopLines() {
		san := ""
		if afterFEN != "" {
			if s, err := notation.LANToSAN(afterFEN, line.Moves); err == nil {
				san = strings.Join(s, " ")
			}
		}
		if err := printLine(cat, i+1, line.Moves, san, line.Evaluation.String()); err != nil {
			return err
		}
	}
	return nil
}

func runRemote(ctx context.Context, c *cli.Command) error {
	pos, err := readPosition(c)
	if err != nil {
		return err
	}
	cat, err := msgcat.New(c.String("messages"))
	if err != nil {
		return err
	}
	client := httpapi.NewClient(c.String("server"))
	resp, err := client.Analyze(ctx, analysisdto.AnalyzeRequest{
		FEN:        pos.fen,
		Moves:      pos.moves,
		Lines:      int(c.Int("lines")),
		MaxElo:     int(c.Int("elo")),
		MoveTimeMS: c.Duration("think").Milliseconds(),
	})
	if err != nil {
		return err
	}
	return printResponse(cat, resp)
}

func runReport(ctx context.Context, c *cli.Command) error {
	cat, err := msgcat.New(c.String("messages"))
	if err != nil {
		return err
	}
	resp, err := httpapi.NewClient(c.String("server")).Report(ctx, c.String("id"))
	if err != nil {
		return err
	}
	return printResponse(cat, resp)
}

func printResponse(cat *msgcat.Catalog, resp *analysisdto.AnalysisResponse) error {
	if err := printf(cat, "analysis.remote", map[string]any{"ID": resp.ID, "Cached": resp.Cached}); err != nil {
		return err
	}
	if resp.Engine != "" {
		if err := printf(cat, "analysis.engine", map[string]any{"Name": resp.Engine, "Author": ""}); err != nil {
			return err
		}
	}
	if resp.OpeningCode != "" {
		if err := printf(cat, "analysis.opening", map[string]any{"Code": resp.OpeningCode, "Title": resp.OpeningTitle}); err != nil {
			return err
		}
	}
	for i, line := range resp.Lines {
		if err := printLine(cat, i+1, line.Moves, strings.Join(line.SAN, " "), line.Display); err != nil {
			return err
		}
	}
	return nil
}

func printLine(cat *msgcat.Catalog, rank int, moves []string, san, evaluation string) error {
	return printf(cat, "analysis.line", map[string]any{
		"Rank":       rank,
		"Moves":      strings.Join(moves, " "),
		"SAN":        san,
		"Evaluation": evaluation,
	})
}

func printf(cat *msgcat.Catalog, key string, data map[string]any) error {
	out, err := cat.Render(key, data)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
