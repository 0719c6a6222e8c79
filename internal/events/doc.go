// Package events provides the typed publish/subscribe channel used by the
// pipeline engine to report stage and run lifecycle notifications.
//
// The event vocabulary is closed: each lifecycle moment has its own event
// struct behind the Event interface, and consumers dispatch with a type
// switch. The Bus guards against accidental listener accumulation with a
// bounded listener ceiling, and Reset drops every listener so subscriptions
// cannot leak across runs.
package events
