// Package transport pumps bytes from an origin HTTP response body into
// a body.Producer, honoring the producer's AskForMore signal as the
// sole permission to read another chunk from the socket. It is the
// concrete stand-in for the channel-handler side of the pipeline: the
// producer only ever sees NewChunk / LastHTTPContent / ChannelException
// / ChannelInactive / TearDownResources calls, exactly as it would from
// a real transport-layer event loop.
package transport
