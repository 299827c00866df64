// Package eventbus provides the server-push side of the connection gateway:
// a websocket bridge that fans puzzle events out to subscribed clients.
//
// The package implements:
//   - Channel-keyed publish/subscribe over gorilla/websocket
//   - FIFO delivery per channel in publish order
//   - Best-effort delivery: slow subscribers lose events, never stall others
//   - The cursor relay, which bypasses the move validator entirely
//   - Disconnect detection feeding participant cleanup
//
// Bridge Protocol:
//
// Clients exchange JSON frames. Inbound frames carry a type of "register",
// "unregister", or "publish" and a channel address; the server pushes
// frames of type "message". Subscriptions are restricted to channels of the
// puzzle the connection was attached to. The only channel clients may
// publish on is that puzzle's cursor relay; commands travel over HTTP.
//
// Channels:
//
//	global_puzzle.<id>  applied swaps        {position0, position1}
//	end.<id>            terminal solved      (no payload)
//	puzzle_users.<id>   cursor relay         {positionX, positionY, username}
//	newOnlineUser.<id>  participant joined   {username}
//	offlineUser.<id>    participant left     {username}
//
// Usage:
//
//	hub := eventbus.NewHub(m, logger)
//	hub.SetDisconnectHandler(func(puzzleID, username string) { ... })
//	http.HandleFunc("/eventbus", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeBus(w, r, puzzleID, username)
//	})
package eventbus
