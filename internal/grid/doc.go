// Package grid holds the robot's world: a fixed-size rectangular grid, the
// single robot's position and heading, and the movement rules that act on it.
//
// Coordinates are zero-indexed with the origin in the bottom-left corner;
// moving north increases Y. A move that would leave the grid is reported as a
// *LostError and the robot keeps its last valid position.
//
// Grid and Engine are not safe for concurrent use. Callers that expose them
// behind concurrent transports must serialize access (see package simulator).
package grid
