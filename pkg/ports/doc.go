// Package ports declares the boundary interfaces between the shuttle core
// and its adapters: graph loading, agent decision-making and trail
// recording. Keeping them here lets adapters depend on contracts instead
// of the engine, and vice versa.
package ports
