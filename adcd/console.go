package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nicekhan23/analog-digital-converter/pkg/adc"
)

// consoleWait bounds how long console commands wait for the table lock. More
// patient than the acquisition loop, so interactive reads rarely see busy.
const consoleWait = 100 * time.Millisecond

// readLines pumps lines from r into a channel so the main loop can select
// over them alongside signals and timers.
func readLines(r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			out <- scanner.Text()
		}
	}()
	return out
}

// execute runs one console command line. It returns true when the session
// should end.
func execute(eng *adc.Engine, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "quit", "exit":
		return true

	case "help":
		printHelp()

	case "status":
		printStatus(eng)

	case "raw", "val":
		if len(fields) != 2 {
			fmt.Printf("usage: %s <ch>\n", fields[0])
			return false
		}
		ch, err := parseChannel(fields[1])
		if err != nil {
			fmt.Println(err)
			return false
		}
		var v uint32
		if fields[0] == "raw" {
			v, err = eng.Raw(ch, consoleWait)
		} else {
			v, err = eng.Filtered(ch, consoleWait)
		}
		printRead(v, err)

	case "cal":
		if len(fields) != 4 {
			fmt.Println("usage: cal <ch> <min> <max>")
			return false
		}
		ch, err := parseChannel(fields[1])
		if err != nil {
			fmt.Println(err)
			return false
		}
		min, err := parseCount(fields[2])
		if err != nil {
			fmt.Println(err)
			return false
		}
		max, err := parseCount(fields[3])
		if err != nil {
			fmt.Println(err)
			return false
		}
		report(eng.SetCalibration(ch, adc.Calibration{Min: min, Max: max}, consoleWait))

	case "width":
		if len(fields) != 3 {
			fmt.Println("usage: width <ch> <width>")
			return false
		}
		ch, err := parseChannel(fields[1])
		if err != nil {
			fmt.Println(err)
			return false
		}
		w, err := parseCount(fields[2])
		if err != nil {
			fmt.Println(err)
			return false
		}
		report(eng.SetHysteresisWidth(ch, w, consoleWait))

	default:
		fmt.Printf("unknown command %q (try help)\n", fields[0])
	}
	return false
}

// report prints the outcome of a mutating command, keeping rejected input,
// transient lock pressure and accepted-but-not-durable updates apart.
func report(err error) {
	switch {
	case err == nil:
		fmt.Println("ok")
	case errors.Is(err, adc.ErrBusy):
		fmt.Println("busy, try again")
	case errors.Is(err, adc.ErrNotPersisted):
		fmt.Printf("accepted, not saved: %v\n", err)
	default:
		fmt.Printf("rejected: %v\n", err)
	}
}

func printRead(v uint32, err error) {
	switch {
	case err == nil:
		fmt.Println(v)
	case errors.Is(err, adc.ErrBusy):
		fmt.Println("busy, try again")
	default:
		fmt.Printf("rejected: %v\n", err)
	}
}

func printStatus(eng *adc.Engine) {
	st, err := eng.Status(consoleWait)
	if err != nil {
		fmt.Println("busy, try again")
		return
	}
	fmt.Printf("running:%v conversions:%d invalid_channel:%d read_errors:%d timeouts:%d\n",
		st.Running, st.Conversions, st.InvalidChannel, st.ReadErrors, st.Timeouts)
	for i, ch := range st.Channels {
		fmt.Printf("%d %-8s in:%d raw:%4d val:%4d cal:[%d,%d] width:%d window:[%d,%d]\n",
			i, ch.Name, ch.Input, ch.Raw, ch.Filtered,
			ch.Cal.Min, ch.Cal.Max, ch.Width, ch.WindowMin, ch.WindowMax)
	}
}

// printValues writes one live line, overwriting itself like the firmware's
// serial monitor did.
func printValues(eng *adc.Engine) {
	st, err := eng.Status(consoleWait)
	if err != nil {
		// Busy; the next tick will catch up.
		return
	}
	parts := make([]string, len(st.Channels))
	for i, ch := range st.Channels {
		parts[i] = fmt.Sprintf("%s raw:%4d val:%4d", ch.Name, ch.Raw, ch.Filtered)
	}
	fmt.Printf("\r%s ", strings.Join(parts, "  "))
}

func printHelp() {
	fmt.Print(`Commands:
  status                engine counters and channel table
  raw <ch>              last raw sample for a channel
  val <ch>              last filtered value for a channel
  cal <ch> <min> <max>  set calibration bounds
  width <ch> <width>    set hysteresis window span
  help                  this text
  quit                  stop and exit
`)
}

func parseChannel(arg string) (int, error) {
	ch, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("bad channel %q", arg)
	}
	return ch, nil
}

func parseCount(arg string) (uint32, error) {
	v, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad value %q", arg)
	}
	return uint32(v), nil
}
