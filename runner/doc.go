// Package runner executes inbound messages in the background.
//
// Transports hand the Runner an Inbound unit and return to their caller
// immediately (a webhook must acknowledge fast). The Runner bounds how many
// units run at once, gives every unit a run id and a cancel func, prepares
// the text (for example by transcribing a voice note), dispatches it and
// delivers the reply. Shutdown stops intake and waits for in-flight units.
package runner
