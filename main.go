package main

import (
	"net/http"
	"os"
	"time"

	"pharmaledger/config"
	"pharmaledger/contract"
	"pharmaledger/metrics"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("pharmaledger.main")

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Error loading configuration: " + err.Error())
	}
	flogging.Init(flogging.Config{LogSpec: cfg.LogSpec, Format: cfg.LogFormat, Writer: os.Stderr})

	directory, err := cfg.Directory()
	if err != nil {
		panic("Error building organization directory: " + err.Error())
	}

	pharmaContract := contract.NewPharmaLedgerContract(directory)
	cc, err := contractapi.NewChaincode(pharmaContract)
	if err != nil {
		panic("Error creating PharmaLedgerContract: " + err.Error())
	}
	cc.DefaultContract = pharmaContract.GetName()
	cc.Info.Title = "pharmaledger"
	cc.Info.Version = pharmaContract.Info.Version

	if cfg.MetricsAddress != "" {
		go serveMetrics(cfg.MetricsAddress)
	}

	if cfg.ExternalService() {
		tlsProps, err := cfg.TLSProperties()
		if err != nil {
			panic("Error loading chaincode TLS material: " + err.Error())
		}
		server := &shim.ChaincodeServer{
			CCID:     cfg.ChaincodeID,
			Address:  cfg.ServerAddress,
			CC:       cc,
			TLSProps: tlsProps,
		}
		logger.Infof("Starting chaincode service '%s' on %s (TLS disabled: %t)", cfg.ChaincodeID, cfg.ServerAddress, tlsProps.Disabled)
		if err := server.Start(); err != nil {
			panic("Error starting chaincode service: " + err.Error())
		}
		return
	}

	if err := cc.Start(); err != nil {
		panic("Error starting chaincode: " + err.Error())
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Infof("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Errorf("Metrics endpoint stopped: %v", err)
	}
}
