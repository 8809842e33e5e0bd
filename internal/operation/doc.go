// Package operation tracks the lifecycle of the one download or convert the
// client may have in flight.
//
// A Controller moves between Idle, Running, Succeeded and Failed. Submissions
// are rejected with services.ErrBusy while an operation runs, and backend
// failures settle into Failed with the server's detail as the message. A
// download clears the previous artifact when it starts; a convert keeps it
// until the conversion output replaces it, so a failed convert never loses the
// downloaded file. Hooks registered with OnTransition observe every change
// and are how history refreshes are chained after downloads.
package operation
