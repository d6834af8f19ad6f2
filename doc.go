// Package gsequencer holds the shared types of the track engine: sound
// scopes, staging flags, recyclings and their contexts, recall ids and
// recalls.
//
// A recall is an effect instance. Templates live on a track or channel, and
// starting a sound scope duplicates them once per recycling context. The
// duplicates are then driven through the stages named by StagingFlags until
// they are done or cancelled. The channel graph itself lives in package
// track.
package gsequencer
