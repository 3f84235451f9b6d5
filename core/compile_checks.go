package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Signer          = (*HawkSigner)(nil)
	_ CodeLedger      = (*MemoryCodeLedger)(nil)
	_ FailureNotifier = FailureNotifierFunc(nil)
	_ FailureNotifier = logFailureNotifier{}
	_ ConfigProvider  = (*CfgxConfigProvider)(nil)
	_ OptionsResolver = GoOptionsResolver{}
	_ RawConfigLoader = StaticConfigLoader{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
