package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"tidal/core"
	"tidal/host/config"
	"tidal/host/device"
	"tidal/host/serial"
	"tidal/host/sim"
)

var (
	configPath = flag.String("config", "", "JSON config file")
	devicePath = flag.String("device", "", "Serial device path (default: auto-discover)")
	baud       = flag.Int("baud", 0, "Baud rate (ignored for USB CDC)")
	timeout    = flag.Duration("timeout", 0, "ACK and reply timeout")
	wait       = flag.Bool("wait", false, "Wait for a badge to be plugged in")
	useSim     = flag.Bool("sim", false, "Talk to an in-process simulated badge")
	verbose    = flag.Bool("verbose", false, "Enable verbose output")
)

// replies maps commands to the response they produce
var replies = map[string]string{
	"get_variant":     "variant",
	"usb_connected":   "usb_state",
	"lightsleep":      "wakeup",
	"get_irq_handler": "irq_handler",
	"pin_number":      "pin_number_result",
	"dump_irq_events": "irq_events",
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dev, badge, err := connect(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	if err := dev.RetrieveDictionary(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to retrieve dictionary: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Connected: %s\n", dev.Dictionary().Header)
	if cfg.Verbose {
		printDictionary(dev)
	}

	go printEvents(ctx, dev)

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		parts, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "quit", "exit", "q":
			return
		case "help", "?":
			printHelp(dev)
		case "dict":
			printDictionary(dev)
		case "raw":
			raw := dev.DictionaryRaw()
			fmt.Printf("Raw dictionary data (%d bytes):\n%s\n", len(raw), raw)
		case "assert":
			// Simulated badge only: drive a pad to its trigger level
			assertPin(badge, parts[1:])
		default:
			if err := runCommand(dev, cfg, parts[0], parts[1:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			if parts[0] == "reboot_bootloader" && badge == nil {
				fmt.Println("Badge is restarting into the bootloader")
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfigFile(*configPath); err != nil {
			return nil, err
		}
	}

	// Flags override the file
	if *devicePath != "" {
		cfg.Device = *devicePath
	}
	if *baud != 0 {
		cfg.Baud = *baud
	}
	if *timeout != 0 {
		cfg.CommandTimeoutMs = int(timeout.Milliseconds())
	}
	cfg.Wait = cfg.Wait || *wait
	cfg.Verbose = cfg.Verbose || *verbose
	return cfg, cfg.Validate()
}

func connect(ctx context.Context, cfg *config.Config) (*device.Device, *sim.Device, error) {
	if *useSim {
		badge := sim.NewDevice()
		go badge.Run(ctx)
		fmt.Println("Using simulated badge")
		return device.New(badge.Conn(), cfg.CommandTimeout()), badge, nil
	}

	path := cfg.Device
	if path == "" {
		var err error
		if cfg.Wait {
			fmt.Printf("Waiting for a badge in %s...\n", cfg.WatchDir)
			path, err = serial.WaitForDevice(ctx, cfg.WatchDir)
		} else {
			path, err = serial.FindDevice()
		}
		if err != nil {
			return nil, nil, err
		}
	}

	fmt.Printf("Connecting to %s...\n", path)
	dev, err := device.Connect(&serial.Config{
		Device:      path,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeoutMs) * time.Millisecond,
	}, cfg.CommandTimeout())
	return dev, nil, err
}

// runCommand sends name with key=value arguments and prints any reply
func runCommand(dev *device.Device, cfg *config.Config, name string, fields []string) error {
	args := make(map[string]string, len(fields))
	for _, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return fmt.Errorf("argument %q is not key=value", field)
		}
		args[key] = value
	}

	reply, ok := replies[name]
	if !ok {
		if err := dev.Call(name, args); err != nil {
			return err
		}
		if cfg.Verbose {
			fmt.Println("ok")
		}
		return nil
	}

	wait := cfg.CommandTimeout()
	if name == "lightsleep" {
		ms, _ := strconv.Atoi(args["time_ms"])
		if ms <= 0 {
			// Only a wake source ends it
			wait = 24 * time.Hour
		} else {
			wait += time.Duration(ms) * time.Millisecond
		}
	}
	msg, err := dev.QueryTimeout(name, args, reply, wait)
	if err != nil {
		return err
	}
	fmt.Println(formatMessage(msg))
	return nil
}

func printEvents(ctx context.Context, dev *device.Device) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-dev.Events():
			fmt.Printf("\n[event] %s\n> ", formatMessage(ev))
		}
	}
}

func assertPin(badge *sim.Device, fields []string) {
	if badge == nil {
		fmt.Println("assert needs -sim")
		return
	}
	if len(fields) != 1 {
		fmt.Println("usage: assert <gpio>")
		return
	}
	var gpio uint32
	if _, err := fmt.Sscan(fields[0], &gpio); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	if !badge.Driver.Assert(core.GPIOPin(gpio)) {
		fmt.Println("interrupt not enabled on that pin")
	}
}

func formatMessage(msg *device.Message) string {
	keys := make([]string, 0, len(msg.Args))
	for k := range msg.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(msg.Name)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, msg.Args[k])
	}
	return sb.String()
}

func printHelp(dev *device.Device) {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  help           - Show this help message")
	fmt.Println("  dict           - Print dictionary summary")
	fmt.Println("  raw            - Print raw dictionary data")
	fmt.Println("  assert <gpio>  - Assert a pad on the simulated badge")
	fmt.Println("  quit/exit/q    - Exit the program")
	fmt.Println("\nBadge commands (name key=value ...):")
	dict := dev.Dictionary()
	for _, name := range dict.CommandNames() {
		if name == "identify" {
			continue
		}
		fmt.Printf("  %-30s %s\n", name, dict.Commands[name].Format)
	}
	fmt.Println()
}

func printDictionary(dev *device.Device) {
	dict := dev.Dictionary()
	fmt.Println("\n=== Badge Dictionary ===")
	fmt.Printf("Version: %s\n", dict.Header)
	fmt.Printf("Commands: %d, responses: %d\n", len(dict.Commands), len(dict.Responses))

	names := make([]string, 0, len(dict.Constants))
	for name := range dict.Constants {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nConstants:")
	for _, name := range names {
		fmt.Printf("  %s = %s\n", name, dict.Constants[name])
	}
	fmt.Println("========================")
}
