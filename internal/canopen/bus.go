package canopen

import (
	"context"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"

	"zlac-drive/internal/drive"
)

// Bus is a SocketCAN connection to the four wheel-drive nodes. All register
// access goes through expedited SDO transfers with a bounded per-call
// timeout. Transfers are issued from the control loop only; the background
// pump is the lone writer of the frame channel.
type Bus struct {
	conn    net.Conn
	tx      *socketcan.Transmitter
	rx      *socketcan.Receiver
	frames  chan can.Frame
	nodes   [drive.NumWheels]uint8
	timeout time.Duration
	log     logrus.FieldLogger
}

// Dial opens the SocketCAN interface and starts the receive pump. Failure
// here is fatal to the caller; per-transfer errors later are not.
func Dial(ctx context.Context, iface string, nodes [drive.NumWheels]uint8, timeout time.Duration, log logrus.FieldLogger) (*Bus, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial %s: %w", iface, err)
	}
	b := &Bus{
		conn:    conn,
		tx:      socketcan.NewTransmitter(conn),
		rx:      socketcan.NewReceiver(conn),
		frames:  make(chan can.Frame, 64),
		nodes:   nodes,
		timeout: timeout,
		log:     log,
	}
	go b.pump()
	return b, nil
}

// pump drains the socket into the frame channel until the connection
// closes. When the channel is full the frame is dropped; the pending
// transfer then surfaces as a timeout rather than blocking the pump.
func (b *Bus) pump() {
	for b.rx.Receive() {
		select {
		case b.frames <- b.rx.Frame():
		default:
		}
	}
}

// transfer sends one SDO request and waits for the matching response,
// skipping unrelated traffic (other nodes' responses, PDOs, heartbeats).
func (b *Bus) transfer(ctx context.Context, req can.Frame, node uint8, index uint16, sub uint8) (uint32, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.tx.TransmitFrame(ctx, req); err != nil {
		return 0, fmt.Errorf("sdo transmit to node %d: %w", node, err)
	}

	want := cobResponseBase + uint32(node)
	for {
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("sdo node %d 0x%04X:%d: %w", node, index, sub, ctx.Err())
		case f := <-b.frames:
			if f.ID != want {
				continue
			}
			return parseResponse(f, node, index, sub)
		}
	}
}

func (b *Bus) upload(ctx context.Context, w drive.Wheel, index uint16, sub uint8) (uint32, error) {
	node := b.nodes[w]
	return b.transfer(ctx, uploadRequest(node, index, sub), node, index, sub)
}

func (b *Bus) download(ctx context.Context, w drive.Wheel, index uint16, sub uint8, value uint32, size int) error {
	node := b.nodes[w]
	_, err := b.transfer(ctx, downloadRequest(node, index, sub, value, size), node, index, sub)
	return err
}

// ReadVelocity returns wheel w's measured speed in RPM, motor sign
// convention.
func (b *Bus) ReadVelocity(ctx context.Context, w drive.Wheel) (float64, error) {
	raw, err := b.upload(ctx, w, idxVelocityActual, 0)
	if err != nil {
		return 0, err
	}
	return float64(int32(raw)), nil
}

// ReadVoltage returns wheel w's DC link voltage in volts.
func (b *Bus) ReadVoltage(ctx context.Context, w drive.Wheel) (float64, error) {
	raw, err := b.upload(ctx, w, idxDCLinkVoltage, 0)
	if err != nil {
		return 0, err
	}
	return float64(raw) / 1000.0, nil
}

// ReadCurrent returns wheel w's measured motor current in mA.
func (b *Bus) ReadCurrent(ctx context.Context, w drive.Wheel) (float64, error) {
	raw, err := b.upload(ctx, w, idxCurrentActual, 0)
	if err != nil {
		return 0, err
	}
	return float64(int16(raw)), nil
}

// ReadErrorCode returns wheel w's drive fault code; zero means no fault.
func (b *Bus) ReadErrorCode(ctx context.Context, w drive.Wheel) (uint16, error) {
	raw, err := b.upload(ctx, w, idxErrorCode, 0)
	if err != nil {
		return 0, err
	}
	return uint16(raw), nil
}

// WriteVelocity commands wheel w to rpm (motor sign convention).
func (b *Bus) WriteVelocity(ctx context.Context, w drive.Wheel, rpm float64) error {
	return b.download(ctx, w, idxTargetVelocity, 0, uint32(int32(math.Round(rpm))), 4)
}

// WriteTorque commands wheel w's motor current in mA.
func (b *Bus) WriteTorque(ctx context.Context, w drive.Wheel, milliamps float64) error {
	return b.download(ctx, w, idxTargetTorque, 0, uint32(uint16(int16(math.Round(milliamps)))), 2)
}

// Close disconnects from the bus; the receive pump exits with it.
func (b *Bus) Close() error {
	return b.conn.Close()
}
