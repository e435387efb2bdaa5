package main

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"
	humanize "github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"

	"github.com/fwguard/go-bootselect/internal/rawplatform"
)

type rootParameters struct {
	Filepath string `short:"f" long:"filepath" description:"File-path of one environment-record config file" required:"true"`
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

	raw, err := os.ReadFile(rootArguments.Filepath)
	log.PanicIf(err)

	record, crcValid, err := rawplatform.DecodeForDump(raw)
	log.PanicIf(err)

	fmt.Printf("Environment Record\n")
	fmt.Printf("==================\n\n")
	fmt.Printf("File-size: %s\n", humanize.Bytes(uint64(len(raw))))
	fmt.Printf("CRC-valid: [%v]\n", crcValid)
	fmt.Printf("Revision: (%d)\n", record.Revision)
	fmt.Printf("InProgress: [%v]\n", record.InProgress)
	fmt.Printf("Ustate: %s\n", record.Ustate)
	fmt.Printf("WatchdogTimeoutSec: (%d)\n", record.WatchdogTimeoutSec)
	fmt.Printf("KernelFile: [%s]\n", record.KernelFileString())
	fmt.Printf("KernelParams: [%s]\n", record.KernelParamsString())
}
