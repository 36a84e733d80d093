package driver

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// DefaultBaudRate is the standard baud rate for the sampler firmware.
const DefaultBaudRate = 115200

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Serial reads conversion frames from a sampler board attached over a serial
// port. On Start it sends the board the set of inputs to sample, then keeps
// parsing frames into the sample buffer until stopped.
type Serial struct {
	port string
	baud int

	mu      sync.Mutex
	conn    serial.Port
	inputs  []int
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	frames *frameBuffer
}

// NewSerial creates a device for the given port. A zero baud rate selects
// DefaultBaudRate.
func NewSerial(port string, baud int) *Serial {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	return &Serial{
		port:   port,
		baud:   baud,
		frames: newFrameBuffer(BufferSamples),
	}
}

// Configure declares the physical inputs the board should sample.
func (d *Serial) Configure(inputs []int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return fmt.Errorf("cannot configure while started")
	}
	if err := checkInputs(inputs); err != nil {
		return err
	}
	d.inputs = append([]int(nil), inputs...)
	return nil
}

// Start opens the port, sends the input configuration to the board and
// starts the frame reader.
func (d *Serial) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return fmt.Errorf("already started")
	}
	if len(d.inputs) == 0 {
		return ErrNotStarted
	}

	mode := &serial.Mode{
		BaudRate: d.baud,
	}
	port, err := serial.Open(d.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}
	if _, err := port.Write(configCommand(d.inputs)); err != nil {
		port.Close()
		return fmt.Errorf("failed to send input configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.conn = port
	d.cancel = cancel
	d.done = done
	d.started = true

	go d.readFrames(ctx, port, done)

	return nil
}

// Stop closes the port and waits for the frame reader to exit. Safe on a
// device that never started, and safe to call twice.
func (d *Serial) Stop() error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	d.started = false
	d.cancel()
	conn, done := d.conn, d.done
	d.conn = nil
	d.mu.Unlock()

	if err := conn.Close(); err != nil {
		log.Printf("Error closing serial port: %v", err)
	}
	<-done
	return nil
}

// Ready returns the wake channel for buffered frames.
func (d *Serial) Ready() <-chan struct{} {
	return d.frames.ready
}

// Drain copies buffered samples into dst.
func (d *Serial) Drain(dst []Sample) (int, error) {
	return d.frames.drain(dst)
}

// readFrames reads lines from the serial port and pushes parsed frames into
// the sample buffer. It exits when the port closes; an unexpected end of the
// stream is recorded as a buffer fault so the consumer sees it.
func (d *Serial) readFrames(ctx context.Context, conn serial.Port, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in readFrames: %v", r)
		}
	}()

	scanner := bufio.NewScanner(conn)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !scanner.Scan() {
			if ctx.Err() != nil {
				// Deliberate stop.
				return
			}
			err := scanner.Err()
			if err == nil {
				err = fmt.Errorf("stream closed")
			}
			log.Printf("Error reading from serial port: %v", err)
			d.frames.fail(fmt.Errorf("serial read: %w", err))
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		samples, err := ParseFrame(line)
		if err != nil {
			log.Printf("Failed to parse frame '%s': %v", line, err)
			continue
		}
		d.frames.push(samples)
	}
}

// configCommand builds the input-configuration line the firmware understands:
// "c 6,7\n" samples inputs 6 and 7.
func configCommand(inputs []int) []byte {
	var cmd strings.Builder
	cmd.WriteString("c ")
	for i, in := range inputs {
		if i > 0 {
			cmd.WriteByte(',')
		}
		cmd.WriteString(strconv.Itoa(in))
	}
	cmd.WriteByte('\n')
	return []byte(cmd.String())
}

// checkInputs validates a requested input set: non-empty, each id on the
// frontend, no input listed twice.
func checkInputs(inputs []int) error {
	if len(inputs) == 0 {
		return fmt.Errorf("no inputs given")
	}
	if len(inputs) > MaxInput+1 {
		return fmt.Errorf("%d inputs requested, frontend has %d", len(inputs), MaxInput+1)
	}
	seen := make(map[int]bool, len(inputs))
	for _, in := range inputs {
		if in < 0 || in > MaxInput {
			return fmt.Errorf("input %d out of range [0, %d]", in, MaxInput)
		}
		if seen[in] {
			return fmt.Errorf("input %d listed twice", in)
		}
		seen[in] = true
	}
	return nil
}
