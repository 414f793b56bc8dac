package farmodbus

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoDevice answers every read/write request frame it receives over conn
// with a well-formed reply, standing in for "a stubbed port that echoes
// Modbus frames" (spec.md §8's concurrency scenario). It keeps its own
// register file so writes are visible to subsequent polls.
type echoDevice struct {
	mu   sync.Mutex
	regs [256]int16
}

func (d *echoDevice) serve(t *testing.T, conn net.Conn) {
	t.Helper()
	for {
		req := make([]byte, requestFrameLength)
		if _, err := net.Conn(conn).Read(req); err != nil {
			return
		}

		switch req[1] {
		case fcReadHoldingRegisters, fcReadInputRegisters:
			first, count := int(req[3]), int(req[5])
			d.mu.Lock()
			reply := []byte{req[0], req[1], byte(2 * count)}
			for k := 0; k < count; k++ {
				v := uint16(d.regs[first+k])
				reply = append(reply, byte(v>>8), byte(v))
			}
			d.mu.Unlock()
			hi, lo := crcOf(reply)
			reply = append(reply, hi, lo)
			conn.Write(reply)

		case fcWriteSingleRegister:
			reg, val := int(req[3]), uint16(req[5])
			d.mu.Lock()
			d.regs[reg] = int16(val)
			d.mu.Unlock()
			reply := []byte{req[0], req[1], 0x00, req[3], 0x00, req[5]}
			hi, lo := crcOf(reply)
			reply = append(reply, hi, lo)
			conn.Write(reply)

		default:
			return
		}
	}
}

var (
	sharedFarmOnce sync.Once
	sharedFarm     *Farm
	sharedDevice   *echoDevice
	sharedStation  StationHandle
)

// singletonFarm returns the single functional Farm used by every test in
// this file, wired to an in-memory echo device over a net.Pipe, built
// exactly once regardless of test order.
func singletonFarm(t *testing.T) (*Farm, StationHandle) {
	t.Helper()
	sharedFarmOnce.Do(func() {
		client, device := net.Pipe()
		sharedDevice = &echoDevice{}
		go sharedDevice.serve(t, device)

		sharedFarm = NewFarm()
		portHandle := sharedFarm.AddPort(portKindTCP, "pipe", newSocketLink(client))
		handle, err := sharedFarm.AddStation(portHandle, 1)
		require.NoError(t, err)
		sharedStation = handle
	})
	return sharedFarm, sharedStation
}

func TestFarmSingleton(t *testing.T) {
	farm, station := singletonFarm(t)
	_, err := farm.Query(station, 0)
	assert.True(t, err == nil || Code(err) == NotReady)

	second := NewFarm()
	defer second.Close()

	_, err = second.Query(0, 0)
	assert.ErrorIs(t, err, ErrNotSingleton)

	err = second.Configure("T3000")
	assert.ErrorIs(t, err, ErrNotSingleton)
}

func TestFarmAddStationRejectsBadPortHandle(t *testing.T) {
	farm, _ := singletonFarm(t)
	_, err := farm.AddStation(PortHandle(99), 1)
	assert.ErrorIs(t, err, ErrBadPortHandle)
}

func TestFarmQueryRejectsBadStationHandle(t *testing.T) {
	farm, _ := singletonFarm(t)
	_, err := farm.Query(StationHandle(99), 0)
	assert.ErrorIs(t, err, ErrBadStationHandle)
}

func TestFarmWriteThenQueryRoundTrips(t *testing.T) {
	farm, station := singletonFarm(t)

	const reg = 20
	require.Eventually(t, func() bool {
		_, err := farm.Query(station, reg)
		return err == nil || Code(err) == NotReady
	}, 2*time.Second, 10*time.Millisecond)

	// Write's return value reports the *previous* cycle's outcome, not this
	// write's; it is not meaningful here.
	_ = farm.Write(station, reg, 123)

	require.Eventually(t, func() bool {
		v, err := farm.Query(station, reg)
		return err == nil && v == 123
	}, 3*time.Second, 50*time.Millisecond)
}

func TestFarmConcurrentReadersAndWriters(t *testing.T) {
	farm, station := singletonFarm(t)

	const readers = 6
	const writers = 4
	const opsPerGoroutine = 20

	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		reg := 30 + i
		go func(reg int) {
			defer wg.Done()
			for n := 0; n < opsPerGoroutine; n++ {
				_, err := farm.Query(station, reg)
				assert.False(t, err != nil && Code(err) == NotSingleton)
				time.Sleep(10 * time.Millisecond)
			}
		}(reg)
	}
	for i := 0; i < writers; i++ {
		wg.Add(1)
		reg := 60 + i
		go func(reg int) {
			defer wg.Done()
			for n := 0; n < opsPerGoroutine; n++ {
				err := farm.Write(station, reg, uint16(n))
				assert.False(t, err != nil && Code(err) == NotSingleton)
				time.Sleep(10 * time.Millisecond)
			}
		}(reg)
	}
	wg.Wait()

	for i := 0; i < readers; i++ {
		reg := 30 + i
		require.Eventually(t, func() bool {
			_, err := farm.Query(station, reg)
			return err == nil
		}, 3*time.Second, 50*time.Millisecond, "register %d never became ready", reg)
	}
}
