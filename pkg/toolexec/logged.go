package toolexec

import (
	log "github.com/sirupsen/logrus"
)

// Logged wraps a Gateway and logs every invocation and its exit status
// at debug level
type Logged struct {
	Gateway Gateway
	Logger  log.FieldLogger
}

func (l Logged) Invoke(name string, args ...string) (*Result, error) {
	pending := &Result{Name: name, Args: args}
	l.Logger.WithField("command", pending.CommandLine()).Debug("running")

	res, err := l.Gateway.Invoke(name, args...)
	if err != nil {
		l.Logger.WithError(err).WithField("command", pending.CommandLine()).Debug("failed to start")
		return res, err
	}
	l.Logger.WithFields(log.Fields{
		"command": res.CommandLine(),
		"status":  res.Status,
	}).Debug("finished")
	return res, nil
}
