// Command lripatch makes and applies patches to the TradeSkillMaster realm
// table (LibRealmInfo.lua).
//
// Usage:
//
//	lripatch diff [-out file] src dst
//	lripatch patch [-out file] [-in-place] [-digest sha256] src diff
//	lripatch hash file
//	lripatch patch-tsm -game dir digest diff
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alanyoungcy/auctiondb/internal/patcher"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "diff":
		err = runDiff(os.Args[2:])
	case "patch":
		err = runPatch(os.Args[2:])
	case "hash":
		err = runHash(os.Args[2:])
	case "patch-tsm":
		err = runPatchTSM(os.Args[2:], logger)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("lripatch failed", slog.String("command", os.Args[1]), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: lripatch diff|patch|hash|patch-tsm [flags] args...")
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// output writes to path, or stdout when path is empty.
func output(path, data string) error {
	if path == "" {
		_, err := io.WriteString(os.Stdout, data)
		return err
	}
	return os.WriteFile(path, []byte(data), 0o644)
}

func runDiff(args []string) error {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	out := fs.String("out", "", "output file (default stdout)")
	_ = fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("diff needs src and dst")
	}
	src, err := readFile(fs.Arg(0))
	if err != nil {
		return err
	}
	dst, err := readFile(fs.Arg(1))
	if err != nil {
		return err
	}
	return output(*out, patcher.Diff(src, dst))
}

func runPatch(args []string) error {
	fs := flag.NewFlagSet("patch", flag.ExitOnError)
	out := fs.String("out", "", "output file (default stdout)")
	inPlace := fs.Bool("in-place", false, "overwrite src, takes precedence over -out")
	digest := fs.String("digest", "", "sha256 digest src must match, as printed by the hash command")
	_ = fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("patch needs src and diff")
	}
	src, err := readFile(fs.Arg(0))
	if err != nil {
		return err
	}
	diff, err := readFile(fs.Arg(1))
	if err != nil {
		return err
	}
	dst, err := patcher.Patch(src, diff, *digest)
	if err != nil {
		return err
	}
	if *inPlace {
		return output(fs.Arg(0), dst)
	}
	return output(*out, dst)
}

func runHash(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("hash needs one file")
	}
	text, err := readFile(args[0])
	if err != nil {
		return err
	}
	fmt.Println(patcher.Hash(text))
	return nil
}

func runPatchTSM(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("patch-tsm", flag.ExitOnError)
	game := fs.String("game", "", "game install directory holding the _retail_ and _classic_ folders")
	_ = fs.Parse(args)
	if *game == "" || fs.NArg() != 2 {
		return fmt.Errorf("patch-tsm needs -game, a digest and a diff file")
	}
	diff, err := readFile(fs.Arg(1))
	if err != nil {
		return err
	}
	patched, err := patcher.NewTSM(*game, logger).PatchAll(diff, fs.Arg(0))
	logger.Info("patch-tsm finished", slog.Int("patched", len(patched)))
	return err
}
