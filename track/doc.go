/*
Package track implements the channel graph of an audio track and the
lifecycle engine of its recalls.

A Track has output and input channels, addressed by pad and audio channel.
Each direction is stored as an arena ordered by line, where

	line = pad*audioChannels + audioChannel

and the neighbour links of a channel (prev/next in line order, prevPad/nextPad
across pads within one audio channel) are indices into that arena. Resizing
rebuilds the arena and restitches every index, so the links are never
inconsistent between two calls.

Channels own or borrow recyclings (buffers). Inputs of one track are linked to
outputs of other tracks with Link; the recycling ranges of linked channels
are refreshed on every structural change and propagated downstream.

Recalls are effect instances. Templates are added to a track with
AddTemplate; Start creates a run per leaf channel and sound scope, and
RecursiveRunStage moves the runs through the lifecycle:

	duplicate -> resolve -> init -> play (repeated) -> done -> cancel -> cleanup

Runs reach upstream through input links: the first time a run of this track
is staged, nested runs are created on the tracks feeding it, and they are
staged together with it.

Locking: every track has three mutexes, acquired in this order: the
structural lock, the "play" list lock and the "recall" list lock. Linking
additionally serializes on a package level mutex, taken before any track
lock. No lock is held while a recall processor runs.
*/
package track
