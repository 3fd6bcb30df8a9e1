package location

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"

	"googlemaps.github.io/maps"
)

// probeTool runs an external probe binary and returns its stdout, or an
// error when the binary is missing or exits non-zero.
func probeTool(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%s not found: %w", name, err)
	}
	output, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	return output, nil
}

// getWiFiAccessPoints scans nearby WiFi access points through nmcli. Terse
// nmcli output escapes the colons inside BSSIDs, so the separator split has
// to undo that before parsing the MAC.
func getWiFiAccessPoints(ctx context.Context) ([]maps.WiFiAccessPoint, error) {
	output, err := probeTool(ctx, "nmcli", "-t", "-f", "BSSID,SIGNAL", "dev", "wifi", "list")
	if err != nil {
		return nil, err
	}

	var accessPoints []maps.WiFiAccessPoint
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		sep := strings.LastIndex(line, ":")
		if sep <= 0 {
			continue
		}

		bssid := strings.ReplaceAll(strings.TrimSpace(line[:sep]), `\:`, ":")
		if _, err := net.ParseMAC(bssid); err != nil {
			continue
		}
		signal, err := strconv.Atoi(strings.TrimSpace(line[sep+1:]))
		if err != nil {
			continue
		}

		accessPoints = append(accessPoints, maps.WiFiAccessPoint{
			MACAddress:     bssid,
			SignalStrength: float64(signal),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan nmcli output: %w", err)
	}

	return accessPoints, nil
}

// getCellTowers reads the serving cell of the given modem through mmcli.
// LAC and cell id are reported in hex, the PLMN codes in decimal.
func getCellTowers(ctx context.Context, modemIndex int) ([]maps.CellTower, error) {
	output, err := probeTool(ctx, "mmcli", "-m", strconv.Itoa(modemIndex), "--output-keyvalue")
	if err != nil {
		return nil, err
	}

	tower := maps.CellTower{}
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "modem.3gpp.mcc":
			if mcc, err := strconv.Atoi(value); err == nil {
				tower.MobileCountryCode = mcc
			}
		case "modem.3gpp.mnc":
			if mnc, err := strconv.Atoi(value); err == nil {
				tower.MobileNetworkCode = mnc
			}
		case "modem.3gpp.lac":
			if lac, err := strconv.ParseInt(value, 16, 32); err == nil {
				tower.LocationAreaCode = int(lac)
			}
		case "modem.3gpp.cid":
			if cid, err := strconv.ParseInt(value, 16, 32); err == nil {
				tower.CellID = int(cid)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan mmcli output: %w", err)
	}

	if tower.MobileCountryCode == 0 || tower.MobileNetworkCode == 0 {
		return nil, errors.New("incomplete cell tower data")
	}
	return []maps.CellTower{tower}, nil
}
