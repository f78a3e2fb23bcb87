// Package components provides configuration builders for the pluggable parts of the SDK: the
// data source (how flag/segment data is obtained), the data store (where it is kept), the event
// pipeline (whether and how analytics events are sent), and the big segment bridge. Each builder
// mirrors the corresponding ldcomponents factory in the reference SDK: a zero-value-free
// constructor function, chainable option methods, and a Build method the client calls once
// during startup.
package components
