package central

import "github.com/srg/blemap/internal/device"

// Event is one inbound notification from the transport or a timer.
type Event interface {
	event()
}

// AdvertisementReceived delivers one advertisement report.
type AdvertisementReceived struct {
	Report device.AdvertisementReport
}

// ConnectResult completes a connect request. Status is StatusSuccess on success.
type ConnectResult struct {
	Handle device.ConnHandle
	Status device.Status
	Err    error
}

// DisconnectNotice reports that a connection went away.
type DisconnectNotice struct {
	Handle device.ConnHandle
	Reason device.Status
}

// DiscoveryAttribute delivers one discovery result for a cursor.
// A nil Attr is the end-of-walk sentinel.
type DiscoveryAttribute struct {
	Handle device.ConnHandle
	Cursor uint64
	Attr   *device.Attribute
}

// TimerExpired fires when a pending request timer runs out.
type TimerExpired struct {
	Seq uint64
}

func (AdvertisementReceived) event() {}
func (ConnectResult) event()         {}
func (DisconnectNotice) event()      {}
func (DiscoveryAttribute) event()    {}
func (TimerExpired) event()          {}
