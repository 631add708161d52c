/*
Package fsm provides the generic state-machine engine used by body.Producer
and any other component that needs an exhaustive, table-driven
state x event transition table instead of ad-hoc if/switch dispatch.

It deliberately does not know about any particular domain: states are a
comparable type parameter, events are a closed sum type behind the Event
interface, and transitions are plain functions. Compare agent/state.go's
validTransitions map, which hard-codes one specific state graph — fsm
generalizes that shape and adds handler side effects and serialization.
*/
package fsm
