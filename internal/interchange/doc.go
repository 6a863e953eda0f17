// Package interchange converts records to and from standard formats:
// contacts as vCard 4.0 and holidays as an iCalendar feed.
//
// Conversion is lossy by nature. Notification settings and history have no
// standard representation and are not exported.
package interchange
