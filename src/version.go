package audiomix

// Version is the engine package version, bumped alongside the bus
// protocol in bus.go whenever a MessageKind is added or its fields
// change shape.
const Version = "0.1.0"
