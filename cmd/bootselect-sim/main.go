package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dsoprea/go-logging"
	humanize "github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"

	"github.com/fwguard/go-bootselect"
	"github.com/fwguard/go-bootselect/internal/rawplatform"
)

type rootParameters struct {
	Dir            string `short:"d" long:"dir" description:"Directory holding cfgN environment-record files" required:"true"`
	ExpectedParts  int    `short:"n" long:"expected-parts" description:"Expected number of redundant config partitions" default:"2"`
	BootDevicePath string `short:"b" long:"boot-device-path" description:"Device-path to treat as the boot volume, for tie-breaking"`
	DryRun         bool   `long:"dry-run" description:"Do not persist write-backs"`
}

var (
	rootArguments = new(rootParameters)
)

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}

	platform := rawplatform.NewDirPlatform(rootArguments.Dir)
	platform.BootDevicePath = rootArguments.BootDevicePath

	volumes, err := platform.ScanVolumes()
	log.PanicIf(err)

	fmt.Printf("Found (%s) candidate volumes in [%s]\n", humanize.Comma(int64(len(volumes))), rootArguments.Dir)

	if rootArguments.DryRun {
		// A dry run still has to observe write-backs without persisting
		// them; wrap the real directory platform in one that discards
		// writes rather than teaching the selector about dry-run mode.
		platformForSelect := &dryRunPlatform{DirPlatform: platform}
		runSelection(platformForSelect, volumes)
		return
	}

	runSelection(platform, volumes)
}

func runSelection(platform bootselect.Platform, volumes []bootselect.Volume) {
	cfg := bootselect.Config{
		ExpectedConfigParts: rootArguments.ExpectedParts,
		DefaultTimeout:      30 * time.Second,
	}

	params, verdict, err := bootselect.Select(context.Background(), platform, volumes, cfg)
	log.PanicIf(err)

	fmt.Printf("\nVerdict: %s\n", verdict)

	if verdict == bootselect.VerdictError {
		os.Exit(1)
	}

	fmt.Printf("PayloadPath: [%s]\n", params.PayloadPath)
	fmt.Printf("PayloadOptions: [%s]\n", params.PayloadOptions)
	fmt.Printf("Timeout: %s\n", params.Timeout)
}

// dryRunPlatform passes every Platform call through to the real directory
// platform except OpenConfig in write mode, which is redirected to an
// in-memory sink so write-backs never touch disk.
type dryRunPlatform struct {
	*rawplatform.DirPlatform
}

func (p *dryRunPlatform) OpenConfig(volume bootselect.Volume, mode bootselect.FileMode) (bootselect.ConfigFile, error) {
	if mode == bootselect.ModeReadWrite {
		return &discardConfigFile{}, nil
	}

	return p.DirPlatform.OpenConfig(volume, mode)
}

type discardConfigFile struct{}

func (discardConfigFile) Read(p []byte) (int, error)  { return 0, log.Errorf("dry-run: read not supported") }
func (discardConfigFile) Write(p []byte) (int, error) { return len(p), nil }
func (discardConfigFile) Close() error                { return nil }
