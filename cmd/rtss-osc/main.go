/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command rtss-osc reads RivaTuner Statistics Server shared memory and sends
// the frame count of a target application to the VRChat chatbox over OSC.
//
// Usage:
//
//	rtss-osc [-config file] [-name segment] run|dump|app <index>|osd <index>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/srediag/rtss-shm/internal/logging"
	"github.com/srediag/rtss-shm/pkg/config"
	"github.com/srediag/rtss-shm/pkg/lookup"
	"github.com/srediag/rtss-shm/pkg/shm"
	"github.com/srediag/rtss-shm/pkg/snapshot"
)

var errNoData = errors.New("no RTSS data")

func main() {
	fs := flag.NewFlagSet("rtss-osc", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	mapName := fs.String("name", "", "shared memory segment name (overrides map_name)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: rtss-osc [flags] run|dump|app <index>|osd <index>\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rtss-osc: %v\n", err)
		os.Exit(2)
	}
	if *mapName != "" {
		cfg.MapName = *mapName
	}
	if cfg.LogLevel != "" {
		lv, _ := logging.ParseLevel(cfg.LogLevel)
		logging.SetLevel(lv)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, cfg, fs.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "rtss-osc: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	cmd := "run"
	if len(args) > 0 {
		cmd = args[0]
	}
	switch cmd {
	case "run":
		return runDaemon(ctx, cfg, logging.Default())
	case "dump":
		return dump(ctx, cfg, out)
	case "app", "osd":
		if len(args) != 2 {
			return fmt.Errorf("%s needs an index", cmd)
		}
		idx, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("index %q: %w", args[1], err)
		}
		return point(ctx, cfg, cmd, uint32(idx), out)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func newRegion(cfg *config.Config) *shm.Region {
	return shm.NewRegion(shm.Options{Name: cfg.MapName})
}

// dump prints one refresh of the whole region.
func dump(ctx context.Context, cfg *config.Config, out io.Writer) error {
	snap := snapshot.NewReader(newRegion(cfg), nil).RefreshOnce(ctx)
	if snap.Empty() {
		return errNoData
	}
	fmt.Fprint(out, snap.Header.String())
	for i, e := range snap.OSD {
		fmt.Fprintf(out, "\n[osd %d]\n%s", i, e.String())
	}
	for i, e := range snap.Apps {
		fmt.Fprintf(out, "\n[app %d]\n%s", i, e.String())
	}
	return nil
}

// point prints a single record.
func point(ctx context.Context, cfg *config.Config, kind string, idx uint32, out io.Writer) error {
	l := lookup.NewLookup(newRegion(cfg), nil)
	defer func() { _ = l.Close() }()

	var (
		s  fmt.Stringer
		ok bool
	)
	if kind == "app" {
		s, ok = l.FindAppByIndex(ctx, idx)
	} else {
		s, ok = l.FindOSDByIndex(ctx, idx)
	}
	if !ok {
		return fmt.Errorf("%s %d: %w", kind, idx, errNoData)
	}
	fmt.Fprint(out, s.String())
	return nil
}
