// Package conversation holds the state behind one chat widget instance: the
// ordered message list, the loading flag, and the send/stop/receive
// operations that move it between Idle and AwaitingReply.
//
// A Conversation dispatches every SendMessage to a host-provided Handler on
// its own goroutine. Each send gets a request ID and a context; Stop cancels
// the context and invalidates the ID, so a reply that arrives afterwards,
// whether returned by the handler or delivered through Resolve, is dropped
// instead of appended. Only one request may be outstanding at a time; a
// second SendMessage fails with ErrBusy.
//
// Activity is published on an EventBus so hosts and the widget can observe
// sent and received messages without polling.
package conversation
