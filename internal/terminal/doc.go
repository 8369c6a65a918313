// Package terminal is the thin user-interface layer of rtv: notifications,
// a transient loader for blocking operations, and browser launching.
//
// Browser launching is a capability with two variants. On a graphical
// display the default browser is spawned in the background and the call
// returns immediately. Without a display, a terminal browser (elinks, lynx,
// w3m, or $BROWSER) takes over the screen and the call blocks until the
// user closes it.
package terminal
