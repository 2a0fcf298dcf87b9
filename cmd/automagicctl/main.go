package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dougsko/automagic/pkg/client"
	"github.com/dougsko/automagic/pkg/config"
	flag "github.com/spf13/pflag"
)

var (
	socketPath = flag.StringP("socket", "s", config.DefaultSocketPath(), "Unix socket path")
	command    = flag.String("cmd", "", "Command to send (e.g., 'STATUS', 'EDGES:7000:7300')")
)

func main() {
	flag.Usage = showHelp
	flag.Parse()

	if *socketPath == "" {
		fmt.Fprintf(os.Stderr, "Socket path is required\n")
		os.Exit(1)
	}

	// If no command specified, show interactive help
	if *command == "" {
		if flag.NArg() > 0 {
			*command = strings.Join(flag.Args(), " ")
		} else {
			showHelp()
			return
		}
	}

	// Create socket client
	c := client.NewSocketClient(*socketPath)

	// Send command
	response, err := c.SendCommand(*command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Print response
	fmt.Printf("%s\n", response.String())
	if !response.Success {
		os.Exit(1)
	}
}

func showHelp() {
	fmt.Println("automagicctl - waterfall and power sync daemon control tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options] <command>\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  STATUS                    Get engine state")
	fmt.Println("  SETTINGS                  Get the band/mode settings table")
	fmt.Println("  EDGES:<lower>:<upper>     Set scope edges in kHz for the current band and mode")
	fmt.Println("  ZOOM                      Zoom the scope around the current frequency")
	fmt.Println("  BANDMODE                  Restore the stored edges")
	fmt.Println("  REFLEVEL:<dB>             Set the reference level (-20..20)")
	fmt.Println("  POWER:<percent>           Set the power ceiling (0..100)")
	fmt.Println("  BAREFOOT                  Toggle barefoot (full power) mode")
	fmt.Println("  SAVE                      Persist settings now")
	fmt.Println("  PING                      Test connection")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  %s STATUS\n", os.Args[0])
	fmt.Printf("  %s EDGES:7000:7040\n", os.Args[0])
	fmt.Printf("  %s REFLEVEL:-6\n", os.Args[0])
	fmt.Printf("  echo 'STATUS' | nc -U %s\n", config.DefaultSocketPath())
}
