package core

// Version is the client library version, sent in the default User-Agent.
const Version = "0.1.0"
