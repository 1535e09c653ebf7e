// Package serialdev implements the concrete UART-attached AMBE devices:
// DVSI's USB-3003 (three channels, hardware reset via UART break) and
// USB-3000 (one channel, no hardware reset).
package serialdev

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"

	"github.com/janakj/ambe/pkg/device"
	"github.com/janakj/ambe/pkg/transport"
)

var log = logrus.New()

// UartDevice is the common implementation shared by Usb3003 and Usb3000:
// both talk to their chip over a plain RS-232 byte stream via an FTDI
// USB-to-serial adapter, using github.com/tarm/serial the same way the
// teacher's UartTransciever package opens its modem port.
type UartDevice struct {
	pathname string
	baud     int

	port *serial.Port

	cbMu sync.Mutex
	recv device.FifoCallback

	parityMu sync.Mutex
	parity   bool

	cancel chan struct{}
	done   chan struct{}

	reader *transport.FramedReader
	writer *transport.FramedWriter
}

func newUartDevice(pathname string, baud int) *UartDevice {
	return &UartDevice{pathname: pathname, baud: baud, parity: true}
}

// Start opens the serial port and spawns the packet receiver goroutine.
func (d *UartDevice) Start() error {
	log.Infof("opening serial port %s (baud rate %d)", d.pathname, d.baud)

	port, err := serial.OpenPort(&serial.Config{Name: d.pathname, Baud: d.baud})
	if err != nil {
		return fmt.Errorf("serialdev: open %s: %w", d.pathname, err)
	}
	d.port = port
	d.reader = transport.NewFramedReader(transport.NewGoroutineReader(port))
	d.writer = transport.NewFramedWriter(port)
	d.cancel = make(chan struct{})
	d.done = make(chan struct{})

	go d.receiveLoop()
	return nil
}

// Stop signals the receiver goroutine to terminate and releases the port.
// It is safe to call Stop on an already-stopped device: it is a no-op.
func (d *UartDevice) Stop() error {
	if d.port == nil {
		return nil
	}
	select {
	case <-d.cancel:
		// already stopping
	default:
		close(d.cancel)
	}
	port := d.port
	d.port = nil
	err := port.Close()
	<-d.done
	return err
}

func (d *UartDevice) receiveLoop() {
	defer close(d.done)
	for {
		pkt, err := d.reader.ReadPacket(d.cancel)
		if err != nil {
			if err != transport.ErrCancelled {
				log.WithError(err).Errorf("[%s] packet receiver terminated", d.pathname)
			}
			return
		}
		d.cbMu.Lock()
		recv := d.recv
		d.cbMu.Unlock()
		if recv != nil {
			recv(pkt)
		}
	}
}

// SetCallback installs recv and returns the previously installed callback.
func (d *UartDevice) SetCallback(recv device.FifoCallback) device.FifoCallback {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	old := d.recv
	d.recv = recv
	return old
}

// Send writes packet to the device. Not safe for concurrent use; the
// scheduler funnels all writes through a single goroutine.
func (d *UartDevice) Send(pkt []byte) error {
	if d.writer == nil {
		return fmt.Errorf("serialdev: %s is not started", d.pathname)
	}
	return d.writer.WritePacket(pkt)
}

// UsesParity reports whether the device currently expects/produces parity
// fields.
func (d *UartDevice) UsesParity() bool {
	d.parityMu.Lock()
	defer d.parityMu.Unlock()
	return d.parity
}

// SetUsesParity updates the shared parity flag. The API layer calls this
// before submitting a PARITYMODE request so the response is parsed under
// the new setting.
func (d *UartDevice) SetUsesParity(v bool) {
	d.parityMu.Lock()
	d.parity = v
	d.parityMu.Unlock()
}

// Usb3003 drives DVSI's USB-3003: three independent channels, 921,600
// baud, with hardware reset support via UART break.
type Usb3003 struct {
	*UartDevice
}

// NewUsb3003 returns a Usb3003 device bound to the given serial port
// pathname.
func NewUsb3003(pathname string) *Usb3003 {
	return &Usb3003{UartDevice: newUartDevice(pathname, 921600)}
}

// Channels returns 3.
func (d *Usb3003) Channels() int { return 3 }

// HardReset drives a UART break on the port for ~250ms, the DVSI-documented
// way to force a USB-3003 into its power-on reset state.
func (d *Usb3003) HardReset() error {
	f, err := os.OpenFile(d.pathname, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("serialdev: hard reset %s: %w", d.pathname, err)
	}
	defer f.Close()
	return sendBreak(f)
}

// Usb3000 drives DVSI's USB-3000: a single channel, 460,800 baud, and no
// hardware reset support.
type Usb3000 struct {
	*UartDevice
}

// NewUsb3000 returns a Usb3000 device bound to the given serial port
// pathname.
func NewUsb3000(pathname string) *Usb3000 {
	return &Usb3000{UartDevice: newUartDevice(pathname, 460800)}
}

// Channels returns 1.
func (d *Usb3000) Channels() int { return 1 }

// Linux ioctl request numbers for driving a UART break signal, the
// equivalent of the source's tcsendbreak(wfd, 0).
const (
	tiocsbrk = 0x5427
	tioccbrk = 0x5428
)

func sendBreak(f *os.File) error {
	fd := f.Fd()
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, tiocsbrk, 0); errno != 0 {
		return errno
	}
	time.Sleep(250 * time.Millisecond)
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, tioccbrk, 0); errno != 0 {
		return errno
	}
	return nil
}

var (
	_ device.FifoDevice       = (*Usb3003)(nil)
	_ device.FifoDevice       = (*Usb3000)(nil)
	_ device.HardResetCapable = (*Usb3003)(nil)
)
