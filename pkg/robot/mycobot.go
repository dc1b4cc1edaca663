package robot

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"go.bug.st/serial"
)

// MyCobot serial protocol framing.
const (
	frameHeader = 0xFE
	frameFooter = 0xFA

	cmdReleaseAllServos = 0x13
	cmdGetAngles        = 0x20
	cmdSendAngles       = 0x22
	cmdGetCoords        = 0x23
	cmdSendCoords       = 0x25
	cmdGetErrorInfo     = 0x07
)

// DefaultMyCobotBaud is the baud rate of the MyCobot 280 Pi serial link.
const DefaultMyCobotBaud = 1_000_000

var errFrameTimeout = errors.New("timed out waiting for frame")

// MyCobot drives an Elephant Robotics MyCobot arm over its serial protocol.
// Coordinates are millimetres and degrees; the controller firmware handles the
// inverse kinematics.
type MyCobot struct {
	mu           sync.Mutex
	port         io.ReadWriter
	closer       io.Closer
	buf          [1]byte
	errorInfoCmd byte
}

var (
	_ Driver      = (*MyCobot)(nil)
	_ AngleReader = (*MyCobot)(nil)
)

// OpenMyCobot opens the serial port and returns a connected driver. Reads on
// the port give up after timeout, which bounds every position query.
func OpenMyCobot(portName string, baud int, timeout time.Duration) (*MyCobot, error) {
	if baud <= 0 {
		baud = DefaultMyCobotBaud
	}
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return &MyCobot{port: port, closer: port, errorInfoCmd: cmdGetErrorInfo}, nil
}

// NewMyCobot wraps an already open connection. A read that returns no bytes
// and no error is treated as a timeout, matching go.bug.st/serial.
func NewMyCobot(port io.ReadWriter) *MyCobot {
	c := &MyCobot{port: port, errorInfoCmd: cmdGetErrorInfo}
	if closer, ok := port.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// SetErrorInfoCommand overrides the protocol code used by ErrorInfo. The code
// differs between firmware generations; 0 keeps the default. Call it before
// the driver is in use.
func (c *MyCobot) SetErrorInfoCommand(code byte) {
	if code == 0 {
		code = cmdGetErrorInfo
	}
	c.errorInfoCmd = code
}

// Close closes the serial port.
func (c *MyCobot) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// SendCoords commands a Cartesian move.
func (c *MyCobot) SendCoords(ctx context.Context, pose Pose, speed int, mode Mode) error {
	if !pose.Valid() {
		return fmt.Errorf("send coords: want %d components, got %d", PoseLen, len(pose))
	}
	data := append(encodeCoords(pose), clampSpeed(speed), byte(mode))
	return c.send(ctx, cmdSendCoords, data)
}

// SendAngles commands a joint-space move with angles in degrees.
func (c *MyCobot) SendAngles(ctx context.Context, angles Pose, speed int) error {
	if !angles.Valid() {
		return fmt.Errorf("send angles: want %d components, got %d", PoseLen, len(angles))
	}
	data := append(encodeAngles(angles), clampSpeed(speed))
	return c.send(ctx, cmdSendAngles, data)
}

// Coords queries the current Cartesian position.
func (c *MyCobot) Coords(ctx context.Context) (Pose, error) {
	data, err := c.query(ctx, cmdGetCoords)
	if err != nil {
		return nil, err
	}
	if len(data) != 2*PoseLen {
		return nil, ErrNoReading
	}
	return decodeCoords(data), nil
}

// Angles queries the current joint angles in degrees.
func (c *MyCobot) Angles(ctx context.Context) (Pose, error) {
	data, err := c.query(ctx, cmdGetAngles)
	if err != nil {
		return nil, err
	}
	if len(data) != 2*PoseLen {
		return nil, ErrNoReading
	}
	return decodeAngles(data), nil
}

// ErrorInfo reads the controller's error code and describes it.
func (c *MyCobot) ErrorInfo(ctx context.Context) (string, error) {
	data, err := c.query(ctx, c.errorInfoCmd)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("error info: empty response")
	}
	return describeErrorCode(data[0]), nil
}

// ReleaseAllServos lets every joint move freely.
func (c *MyCobot) ReleaseAllServos(ctx context.Context) error {
	return c.send(ctx, cmdReleaseAllServos, nil)
}

func (c *MyCobot) send(ctx context.Context, cmd byte, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.port.Write(encodeFrame(cmd, data)); err != nil {
		return fmt.Errorf("write command 0x%02x: %w", cmd, err)
	}
	return nil
}

func (c *MyCobot) query(ctx context.Context, cmd byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Drop stale replies from earlier commands
	if r, ok := c.port.(interface{ ResetInputBuffer() error }); ok {
		_ = r.ResetInputBuffer()
	}

	if _, err := c.port.Write(encodeFrame(cmd, nil)); err != nil {
		return nil, fmt.Errorf("write command 0x%02x: %w", cmd, err)
	}

	for {
		got, data, err := c.readFrame()
		if err != nil {
			if errors.Is(err, errFrameTimeout) || errors.Is(err, io.EOF) {
				return nil, ErrNoReading
			}
			return nil, fmt.Errorf("read reply 0x%02x: %w", cmd, err)
		}
		if got == cmd {
			return data, nil
		}
	}
}

// readFrame scans for a header and returns the command byte and payload of
// the next complete frame.
func (c *MyCobot) readFrame() (byte, []byte, error) {
	headers := 0
	for headers < 2 {
		b, err := c.readByte()
		if err != nil {
			return 0, nil, err
		}
		if b == frameHeader {
			headers++
		} else {
			headers = 0
		}
	}

	// Extra header bytes belong to a run of headers, not to the length.
	length := byte(frameHeader)
	for length == frameHeader {
		var err error
		if length, err = c.readByte(); err != nil {
			return 0, nil, err
		}
	}
	if length < 2 {
		return 0, nil, fmt.Errorf("bad frame length %d", length)
	}

	body := make([]byte, length)
	for i := range body {
		b, err := c.readByte()
		if err != nil {
			return 0, nil, err
		}
		body[i] = b
	}
	if body[len(body)-1] != frameFooter {
		return 0, nil, fmt.Errorf("bad frame footer 0x%02x", body[len(body)-1])
	}
	return body[0], body[1 : len(body)-1], nil
}

func (c *MyCobot) readByte() (byte, error) {
	n, err := c.port.Read(c.buf[:])
	if n == 1 {
		return c.buf[0], nil
	}
	if err != nil {
		return 0, err
	}
	return 0, errFrameTimeout
}

func encodeFrame(cmd byte, data []byte) []byte {
	frame := make([]byte, 0, len(data)+5)
	frame = append(frame, frameHeader, frameHeader, byte(len(data)+2), cmd)
	frame = append(frame, data...)
	return append(frame, frameFooter)
}

// encodeCoords packs x, y, z as tenths of a millimetre and rx, ry, rz as
// hundredths of a degree.
func encodeCoords(pose Pose) []byte {
	out := make([]byte, 0, 2*PoseLen)
	for i, v := range pose[:PoseLen] {
		scale := 100.0
		if i < 3 {
			scale = 10
		}
		out = binary.BigEndian.AppendUint16(out, uint16(toInt16(v*scale)))
	}
	return out
}

func encodeAngles(angles Pose) []byte {
	out := make([]byte, 0, 2*PoseLen)
	for _, v := range angles[:PoseLen] {
		out = binary.BigEndian.AppendUint16(out, uint16(toInt16(v*100)))
	}
	return out
}

func decodeCoords(data []byte) Pose {
	pose := make(Pose, PoseLen)
	for i := range pose {
		raw := int16(binary.BigEndian.Uint16(data[2*i:]))
		if i < 3 {
			pose[i] = float64(raw) / 10
		} else {
			pose[i] = float64(raw) / 100
		}
	}
	return pose
}

func decodeAngles(data []byte) Pose {
	angles := make(Pose, PoseLen)
	for i := range angles {
		angles[i] = float64(int16(binary.BigEndian.Uint16(data[2*i:]))) / 100
	}
	return angles
}

func toInt16(v float64) int16 {
	v = math.Round(v)
	return int16(max(math.MinInt16, min(math.MaxInt16, v)))
}

func clampSpeed(speed int) byte {
	return byte(max(1, min(100, speed)))
}

func describeErrorCode(code byte) string {
	switch {
	case code == 0:
		return "no error"
	case code >= 1 && code <= 6:
		return fmt.Sprintf("joint %d exceeds limit", code)
	case code >= 16 && code <= 19:
		return fmt.Sprintf("collision protection (code %d)", code)
	case code == 32:
		return "no inverse kinematics solution"
	case code == 33 || code == 34:
		return fmt.Sprintf("no adjacent solution for linear motion (code %d)", code)
	default:
		return fmt.Sprintf("unknown error code %d", code)
	}
}
