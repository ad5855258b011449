package zenoh

import logging "gopkg.in/op/go-logging.v1"

// log is the package-level logger. Swap the backend with logging.SetBackend
// from the host application; every log call here is advisory and never
// changes control flow.
var log = logging.MustGetLogger("zenoh")
