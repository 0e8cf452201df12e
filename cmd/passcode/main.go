// Command passcode prints the APRS-IS passcode for each callsign given
// on the command line.
package main

import (
	"fmt"
	"log"
	"os"

	"aprsd/internal/aprs"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s CALLSIGN [CALLSIGN...]\n", os.Args[0])
		os.Exit(1)
	}

	for _, arg := range os.Args[1:] {
		if _, err := aprs.ParseCallsign(arg); err != nil {
			log.Fatalf("Invalid callsign %q: %v", arg, err)
		}
		fmt.Printf("%s %d\n", arg, aprs.Passcode(arg))
	}
}
