// Package preference stores per-user delivery preferences and answers the
// questions the notification lifecycle asks of them: is this channel or
// category allowed, is the user in quiet hours, and when may a deferred
// notification go out.
//
// Absent preferences mean everything is allowed. Quiet hours use a same-day
// window compared as HH:MM strings in the user's time zone, so a window that
// crosses midnight never matches.
package preference
