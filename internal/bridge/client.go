package bridge

// Conn is an open gpsd session as seen by the engine.
//
// Reports yields decoded reports (*gpsd.VERSIONReport, *gpsd.DEVICESReport,
// *gpsd.SKYReport, *gpsd.TPVReport). Done is closed when the session hits a
// read error or the daemon hangs up.
type Conn interface {
	Watch(enable bool) error
	Send(query string) error
	Reports() <-chan interface{}
	Done() <-chan struct{}
	Close() error
}

// DialFunc opens a new gpsd session.
type DialFunc func() (Conn, error)
